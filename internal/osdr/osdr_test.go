package osdr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeOSDR serves the files and search endpoints.
type fakeOSDR struct {
	*httptest.Server
	files     map[string][]File // keyed by OSD accession
	hits      map[string]string // OSD accession to identifiers
	fileCalls atomic.Int32
}

func newFakeOSDR(t *testing.T) *fakeOSDR {
	t.Helper()
	f := &fakeOSDR{
		files: map[string][]File{
			"OSD-194": {
				{Name: "OSD-194_metadata_OSD-194-ISA.zip", RemoteURL: "/geode-py/ws/studies/OSD-194/download?file=OSD-194_metadata_OSD-194-ISA.zip"},
				{Name: "S1_R1_raw.fastq.gz", RemoteURL: "/geode-py/ws/studies/OSD-194/download?file=S1_R1_raw.fastq.gz"},
				{Name: "S1_R2_raw.fastq.gz", RemoteURL: "/geode-py/ws/studies/OSD-194/download?file=S1_R2_raw.fastq.gz"},
			},
		},
		hits: map[string]string{
			"OSD-194": "GLDS-194 GLDS-1940",
			"OSD-48":  "GLDS-48 GLDS-168",
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/osdr/data/osd/files/", func(w http.ResponseWriter, r *http.Request) {
		f.fileCalls.Add(1)
		num := strings.TrimPrefix(r.URL.Path, "/osdr/data/osd/files/")
		acc := "OSD-" + num
		studies := map[string]interface{}{}
		if files, ok := f.files[acc]; ok {
			studies[acc] = map[string]interface{}{"study_files": files}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"studies": studies})
	})
	mux.HandleFunc("/osdr/data/search", func(w http.ResponseWriter, r *http.Request) {
		var hits []map[string]interface{}
		for acc, ids := range f.hits {
			hits = append(hits, map[string]interface{}{"_source": map[string]string{"Accession": acc, "Identifiers": ids}})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"hits": map[string]interface{}{"hits": hits}})
	})
	mux.HandleFunc("/geode-py/ws/studies/OSD-194/download", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "contents of %s", r.URL.Query().Get("file"))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeOSDR) client() *Client {
	return NewClient(Options{
		FilesURL:     f.URL + "/osdr/data/osd/files/%s",
		SearchURL:    f.URL + "/osdr/data/search?ffield=Data+Source+Type&fvalue=cgene&size=5000",
		AccessionURL: f.URL + "/osdr/data/search?size=2000",
		DownloadBase: f.URL,
		HTTPClient:   f.Client(),
	})
}

func requireFiles(t *testing.T, files []File, names ...string) {
	t.Helper()
	got := make([]string, len(files))
	for i, f := range files {
		got[i] = f.Name
	}
	require.Equal(t, names, got)
}
