package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"os"
	"strings"
	"text/template"

	"github.com/Mitranim/repr"
	"github.com/pkg/errors"
	"github.com/purelabio/ethanol"
	"github.com/spf13/cobra"
)

/*
The generated file holds, per contract: the JSON ABI, the creation code as
bytes and as hex, and a constructor for the ContractBlank. It contains no
top-level function calls and has no impact on program startup.
*/
var codeTemplate = template.Must(template.New("").
	Funcs(template.FuncMap{
		"pkgPrefix": pkgPrefix,
		"repr":      func(input []byte) string { return repr.String(input) },
	}).
	Parse(`
{{range .Defs}}

const {{.ContractName}}AbiJson = ` + "`" + `{{.AbiJson}}` + "`" + `

var {{.ContractName}}Code = {{.Code | repr}}

const {{.ContractName}}CodeHex = ` + "`" + `{{.Code.String}}` + "`" + `

// Parses the embedded ABI and code of "{{.ContractName}}".
func {{.ContractName}}Blank() ({{pkgPrefix $.Self}}ContractBlank, error) {
	return {{pkgPrefix $.Self}}NewContractBlank([]byte({{.ContractName}}AbiJson), {{.ContractName}}CodeHex)
}

{{end}}
`))

type genFlags struct {
	out  string
	pkg  string
	self bool
}

func newGenCmd(app *app) *cobra.Command {
	var flags genFlags

	cmd := &cobra.Command{
		Use:   "gen <filePath:contractName>...",
		Short: "Compile contracts and output their ABI and code as Go source",
		Long: `Compiles Solidity contracts and writes their ABI definitions and code as a Go
file. Specs must have the form "filePath:contractName". Examples:

	ethanol gen --out=gen_contracts.go sol/Test.sol:Test
	ethanol gen --out=gen_contracts.go sol/file0.sol:A sol/file0.sol:B sol/file1.sol:C

To use with "go generate":

	//go:generate ethanol gen --out gen_contracts.go sol/Test.sol:Test

The compiler is invoked with "--optimize" in addition to the configured options.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, specs []string) error {
			if flags.out == "" {
				return errors.New(`must specify "--out": output path for the generated Go file`)
			}

			compiler := app.conf.Compiler()
			compiler.Logger = app.logger
			if compiler.Options == nil {
				compiler.Options = map[string]string{}
			}
			compiler.Options["optimize"] = ""

			source, err := generate(cmd, compiler, specs, flags)
			if err != nil {
				return err
			}

			const readWriteMode = os.FileMode(0600)
			err = os.WriteFile(flags.out, source, readWriteMode)
			return errors.Wrapf(err, "failed to write %q", flags.out)
		},
	}
	cmd.Flags().StringVar(&flags.out, "out", "", "output path for the generated Go file (required)")
	cmd.Flags().StringVar(&flags.pkg, "pkg", "main", "package name for the generated code")
	cmd.Flags().BoolVar(&flags.self, "self", false, "generate without imports or package prefixes")
	return cmd
}

func generate(cmd *cobra.Command, compiler ethanol.Compiler, specs []string, flags genFlags) ([]byte, error) {
	// Extract file paths from <filePath>:<contractName> specs
	filePaths := []string{}
	seen := map[string]bool{}
	for _, spec := range specs {
		pair := strings.Split(spec, ":")
		if len(pair) < 2 {
			return nil, errors.Errorf(`contract specs must have the form "<filePath>:<contractName>", got %q`, spec)
		}
		if !seen[pair[0]] {
			seen[pair[0]] = true
			filePaths = append(filePaths, pair[0])
		}
	}

	defs, err := compiler.CompileDefs(cmd.Context(), filePaths...)
	if err != nil {
		return nil, err
	}

	// Pick the specified contracts, validating their presence.
	picked := make([]ethanol.ContractDef, 0, len(specs))
	for _, spec := range specs {
		sep := strings.LastIndex(spec, ":")
		def, ok := ethanol.FindContractDef(defs, spec[:sep], spec[sep+1:])
		if !ok {
			return nil, errors.Errorf("contract %q is missing from the solc output; found contracts: %q",
				spec, ethanol.SortedDefNames(defs))
		}
		_, err := def.Blank()
		if err != nil {
			return nil, errors.Wrapf(err, "contract %q", spec)
		}

		def.AbiJson, err = prettyJson(def.AbiJson)
		if err != nil {
			return nil, errors.Wrapf(err, "contract %q", spec)
		}
		picked = append(picked, def)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by \"ethanol gen\". DO NOT EDIT.\n\npackage %v\n", flags.pkg)
	if !flags.self {
		buf.WriteString(`import "github.com/purelabio/ethanol"` + "\n")
	}

	err = codeTemplate.Execute(&buf, struct {
		Defs []ethanol.ContractDef
		Self bool
	}{picked, flags.self})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	source, err := format.Source(buf.Bytes())
	return source, errors.Wrap(err, "failed to format generated code")
}

func prettyJson(input string) (string, error) {
	var val interface{}
	err := json.Unmarshal([]byte(input), &val)
	if err != nil {
		return "", errors.WithStack(err)
	}
	pretty, err := json.MarshalIndent(val, "", "\t")
	return string(pretty), errors.WithStack(err)
}

func pkgPrefix(self bool) string {
	if self {
		return ""
	}
	return "ethanol."
}
