package source

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/hillwinds/benetl/internal/config"
	"github.com/hillwinds/benetl/internal/fetcher"
)

// rosterRow is one line of a CSV roster feed.
type rosterRow struct {
	CompanyEIN        string `csv:"company_ein"`
	ExpectedEmployees string `csv:"expected_employees"`
}

// LoadExpectedCounts resolves the expected-headcount reference for roster
// reconciliation: inline config, a local yaml file, or a remote CSV feed.
func LoadExpectedCounts(ctx context.Context, cfg config.RosterConfig) (map[string]int, error) {
	switch cfg.Source {
	case "config":
		out := make(map[string]int, len(cfg.Expected))
		for ein, n := range cfg.Expected {
			out[ein] = n
		}
		return out, nil

	case "file":
		data, err := os.ReadFile(cfg.FeedPath)
		if err != nil {
			return nil, eris.Wrapf(err, "source: read roster file %s", cfg.FeedPath)
		}
		var out map[string]int
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, eris.Wrapf(err, "source: parse roster file %s", cfg.FeedPath)
		}
		return out, nil

	case "http":
		return fetchRosterFeed(ctx, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), cfg.FeedURL)

	case "ftp":
		return fetchRosterFeed(ctx, fetcher.NewFTPFetcher(fetcher.FTPOptions{}), cfg.FeedURL)
	}

	return nil, eris.Errorf("source: unknown roster source %q", cfg.Source)
}

func fetchRosterFeed(ctx context.Context, f fetcher.Fetcher, url string) (map[string]int, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "source: fetch roster feed %s", url)
	}
	defer body.Close()

	return parseRosterCSV(body)
}

func parseRosterCSV(r io.Reader) (map[string]int, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, eris.Wrap(err, "source: roster feed header")
	}

	out := make(map[string]int)
	for {
		var row rosterRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "source: decode roster row")
		}
		n, err := strconv.Atoi(row.ExpectedEmployees)
		if err != nil {
			return nil, eris.Wrapf(err, "source: bad expected count %q for %s", row.ExpectedEmployees, row.CompanyEIN)
		}
		out[row.CompanyEIN] = n
	}
	return out, nil
}
