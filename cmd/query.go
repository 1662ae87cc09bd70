package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/LibrePCB/librepcb-api-server/internal/api"
	"github.com/LibrePCB/librepcb-api-server/internal/model"
)

// queryFile is the YAML layout accepted by --file.
type queryFile struct {
	Parts []model.PartQuery `yaml:"parts"`
}

var queryCmd = &cobra.Command{
	Use:   "query [MANUFACTURER:MPN ...]",
	Short: "Resolve parts and print the results as JSON",
	Long:  "Resolves parts given as MANUFACTURER:MPN arguments and/or listed in a YAML file. Lists longer than the per-request limit are split into batches.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		file, _ := cmd.Flags().GetString("file")
		queries, err := collectQueries(args, file)
		if err != nil {
			return err
		}
		if len(queries) == 0 {
			return eris.New("no parts given")
		}

		env, err := initParts(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Resolver.ResolveAll(cmd.Context(), queries, cfg.Parts.Concurrency)
		if err != nil {
			return eris.Wrap(err, "resolve parts")
		}

		return writeQueryResponse(cmd.OutOrStdout(), api.QueryResponse{Parts: resp.Parts})
	},
}

func init() {
	queryCmd.Flags().StringP("file", "f", "", "YAML file with a parts list (mpn, manufacturer)")
	rootCmd.AddCommand(queryCmd)
}

// collectQueries merges positional MANUFACTURER:MPN arguments with the parts
// listed in file. Arguments come first.
func collectQueries(args []string, file string) ([]model.PartQuery, error) {
	var queries []model.PartQuery
	for _, arg := range args {
		mfr, mpn, ok := strings.Cut(arg, ":")
		if !ok || strings.TrimSpace(mpn) == "" {
			return nil, eris.Errorf("invalid part %q, expected MANUFACTURER:MPN", arg)
		}
		queries = append(queries, model.PartQuery{MPN: strings.TrimSpace(mpn), Manufacturer: strings.TrimSpace(mfr)})
	}

	if file != "" {
		fromFile, err := readQueryFile(file)
		if err != nil {
			return nil, err
		}
		queries = append(queries, fromFile...)
	}
	return queries, nil
}

func readQueryFile(path string) ([]model.PartQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read query file")
	}
	var qf queryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, eris.Wrap(err, "parse query file")
	}
	for i, q := range qf.Parts {
		if q.MPN == "" {
			return nil, eris.Errorf("query file: part %d has no mpn", i+1)
		}
	}
	return qf.Parts, nil
}

func writeQueryResponse(w io.Writer, resp api.QueryResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(resp), "write results")
}
