// Package osdr talks to the NASA Open Science Data Repository APIs: file
// listings per accession, OSD/GLDS accession mapping and ISA archive
// retrieval.
package osdr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nishad/runsheet/internal/config"
	"github.com/nishad/runsheet/internal/errors"
)

var (
	accessionPattern = regexp.MustCompile(`^(OSD|GLDS)-(\d+)$`)
	gldsPattern      = regexp.MustCompile(`GLDS-\d+`)
)

// File is one entry of an accession's file listing.
type File struct {
	Name        string `json:"file_name"`
	RemoteURL   string `json:"remote_url"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	Size        int64  `json:"file_size,omitempty"`
}

// Options configure a Client.
type Options struct {
	FilesURL     string // fmt template taking the OSD number
	SearchURL    string // GLDS to OSD mapping for file listings
	AccessionURL string // OSD and GLDS lookups
	DownloadBase string // prefix of remote_url values
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// OptionsFromConfig converts the application config.
func OptionsFromConfig(cfg config.OSDRConfig) Options {
	return Options{
		FilesURL:     cfg.FilesURL,
		SearchURL:    cfg.SearchURL,
		AccessionURL: cfg.AccessionURL,
		DownloadBase: cfg.DownloadBase,
		Timeout:      time.Duration(cfg.Timeout) * time.Second,
	}
}

// Client is an OSDR API client. It does no caching; see Resolver.
type Client struct {
	opts   Options
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a client. Empty URLs take the public OSDR defaults.
func NewClient(opts Options) *Client {
	def := config.DefaultConfig().OSDR
	if opts.FilesURL == "" {
		opts.FilesURL = def.FilesURL
	}
	if opts.SearchURL == "" {
		opts.SearchURL = def.SearchURL
	}
	if opts.AccessionURL == "" {
		opts.AccessionURL = def.AccessionURL
	}
	if opts.DownloadBase == "" {
		opts.DownloadBase = def.DownloadBase
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{opts: opts, http: hc, logger: logger}
}

// ParseAccession splits "OSD-194" into its prefix and number.
func ParseAccession(accession string) (prefix, number string, err error) {
	m := accessionPattern.FindStringSubmatch(accession)
	if m == nil {
		return "", "", errors.E(errors.Op("osdr.ParseAccession"), errors.KindConfig,
			fmt.Sprintf("invalid accession format %q, must look like OSD-194 or GLDS-194", accession))
	}
	return m[1], m[2], nil
}

// FileURL returns the download URL of a listed file.
func (c *Client) FileURL(f File) string {
	return strings.TrimSuffix(c.opts.DownloadBase, "/") + f.RemoteURL
}

type filesResponse struct {
	Studies map[string]struct {
		StudyFiles []File `json:"study_files"`
	} `json:"studies"`
}

// FileTable lists the files of an OSD or GLDS accession. GLDS accessions are
// first mapped to their OSD accession.
func (c *Client) FileTable(ctx context.Context, accession string) ([]File, error) {
	const op errors.Op = "osdr.FileTable"

	prefix, _, err := ParseAccession(accession)
	if err != nil {
		return nil, errors.Wrap(op, err)
	}
	osd := accession
	if prefix == "GLDS" {
		if osd, err = c.osdForGLDS(ctx, accession); err != nil {
			return nil, errors.Wrap(op, err)
		}
	}
	files, err := c.osdFiles(ctx, osd)
	if err != nil {
		if osd != accession {
			return nil, errors.E(op, err, fmt.Sprintf("%s is not reachable after mapping from %s", osd, accession))
		}
		return nil, errors.Wrap(op, err)
	}
	return files, nil
}

func (c *Client) osdFiles(ctx context.Context, osd string) ([]File, error) {
	_, num, err := ParseAccession(osd)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf(c.opts.FilesURL, num)
	c.logger.Info("retrieving table of files", zap.String("accession", osd), zap.String("url", url))

	var resp filesResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	study, ok := resp.Studies[osd]
	if !ok {
		return nil, errors.E(errors.KindRemote, fmt.Sprintf(
			"%s is not reachable on the OSD website, this study likely does not exist", osd))
	}
	return study.StudyFiles, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				Accession   string `json:"Accession"`
				Identifiers string `json:"Identifiers"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *Client) search(ctx context.Context, url string) (*searchResponse, error) {
	var resp searchResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) osdForGLDS(ctx context.Context, glds string) (string, error) {
	c.logger.Info("searching for OSD mapping", zap.String("accession", glds))
	resp, err := c.search(ctx, c.opts.SearchURL)
	if err != nil {
		return "", err
	}
	for _, hit := range resp.Hits.Hits {
		for _, id := range strings.Fields(hit.Source.Identifiers) {
			if id == glds {
				c.logger.Info("found OSD mapping", zap.String("glds", glds), zap.String("osd", hit.Source.Accession))
				return hit.Source.Accession, nil
			}
		}
	}
	return "", errors.E(errors.KindRemote, fmt.Sprintf("could not find OSD mapping for %s in search results", glds))
}

// AccessionMapping returns the OSD accession and the GLDS accessions that
// belong to accession. An OSD accession without search hits maps to itself
// with no GLDS accessions.
func (c *Client) AccessionMapping(ctx context.Context, accession string) (string, []string, error) {
	const op errors.Op = "osdr.AccessionMapping"

	prefix, _, err := ParseAccession(accession)
	if err != nil {
		return "", nil, errors.Wrap(op, err)
	}
	resp, err := c.search(ctx, c.opts.AccessionURL)
	if err != nil {
		return "", nil, errors.Wrap(op, err)
	}

	if prefix == "OSD" {
		for _, hit := range resp.Hits.Hits {
			if hit.Source.Accession == accession {
				return accession, gldsPattern.FindAllString(hit.Source.Identifiers, -1), nil
			}
		}
		c.logger.Warn("OSD accession not found in search results", zap.String("accession", accession))
		return accession, nil, nil
	}

	for _, hit := range resp.Hits.Hits {
		for _, id := range gldsPattern.FindAllString(hit.Source.Identifiers, -1) {
			if id == accession {
				return hit.Source.Accession, []string{accession}, nil
			}
		}
	}
	return "", nil, errors.E(op, errors.KindRemote, fmt.Sprintf("no data found for %s", accession))
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.E(errors.KindConfig, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.E(errors.KindRemote, err, fmt.Sprintf("request to %s failed", url))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.E(errors.KindRemote, fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url))
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v interface{}) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.E(errors.KindRemote, err, fmt.Sprintf("reading response from %s", url))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.E(errors.KindParse, err, fmt.Sprintf("decoding response from %s", url))
	}
	return nil
}
