package schema

import "github.com/nishad/runsheet/internal/frame"

func str(name string) Column { return Column{Name: name, Type: frame.String, Required: true} }

func single(c Column) Column {
	c.SingleValue = true
	return c
}

func optional(c Column) Column {
	c.Required = false
	return c
}

func boolean(name string) Column { return Column{Name: name, Type: frame.Bool, Required: true} }

func sequencing(name string) *Schema {
	return &Schema{
		Name: name,
		Columns: []Column{
			str("Original Sample Name"),
			single(boolean("has_ERCC")),
			single(str("organism")),
			single(boolean(ColumnPairedEnd)),
			str("read1_path"),
			optional(str(ColumnRead2)),
		},
		PairedEndCheck: true,
	}
}

func builtin() []*Schema {
	return []*Schema{
		sequencing("bulkRNASeq"),
		sequencing("methylSeq"),
		{
			Name: "amplicon",
			Columns: []Column{
				str("Original Sample Name"),
				str("organism"),
				str("host organism"),
				single(boolean(ColumnPairedEnd)),
				str("read1_path"),
				optional(str(ColumnRead2)),
				single(str("F_Primer")),
				optional(single(str("R_Primer"))),
				str("raw_R1_suffix"),
				optional(single(str("raw_R2_suffix"))),
				str("groups"),
			},
			PairedEndCheck: true,
		},
		{
			Name: "metagenomics",
			Columns: []Column{
				str("Original Sample Name"),
				str("read1_path"),
				optional(str(ColumnRead2)),
			},
		},
	}
}
