package ethanol

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

/*
Builds contracts by invoking the Solidity compiler, see
https://solidity.readthedocs.io. The zero value runs "solc" from PATH without
extra options.

"Options" become "--key value" flags, sorted by key; an empty value produces
a bare flag, for example {"optimize": ""} → "--optimize".
*/
type Compiler struct {
	Solc    string
	Options map[string]string
	Logger  zerolog.Logger
}

func (self Compiler) solc() string {
	if self.Solc == "" {
		return "solc"
	}
	return self.Solc
}

// Adds the ".sol" extension unless already present.
func solPath(path string) string {
	if strings.HasSuffix(path, ".sol") {
		return path
	}
	return path + ".sol"
}

/*
Returns the compiler invocation for the given source files, executable first.
Paths may omit the ".sol" extension.
*/
func (self Compiler) CommandLine(paths ...string) []string {
	out := []string{self.solc(), "--combined-json=abi,bin"}

	keys := make([]string, 0, len(self.Options))
	for key := range self.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		out = append(out, "--"+key)
		if val := self.Options[key]; val != "" {
			out = append(out, val)
		}
	}

	for _, path := range paths {
		out = append(out, solPath(path))
	}
	return out
}

/*
Compiles the given source files and returns every contract found in them,
keyed by "<filePath>:<contractName>". Compiler diagnostics are included in the
error on failure.
*/
func (self Compiler) CompileDefs(ctx context.Context, paths ...string) (map[string]ContractDef, error) {
	args := self.CommandLine(paths...)
	self.Logger.Info().Str("component", "compiler").Strs("cmd", args).Msg("compiling")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to invoke %v: %s", args[0], bytes.TrimSpace(stderr.Bytes()))
	}

	return ReadContractDefs(&stdout)
}

/*
Compiles a single source file and returns the contract named after the file:
"token/ERC20.sol" and "token/ERC20" both yield the "ERC20" contract.
*/
func (self Compiler) Compile(ctx context.Context, path string) (ContractBlank, error) {
	_, blank, err := self.CompileDef(ctx, path)
	return blank, err
}

/*
Same as "Compile", but also returns the raw compiler output for the contract,
for callers that need the ABI JSON as emitted by solc.
*/
func (self Compiler) CompileDef(ctx context.Context, path string) (ContractDef, ContractBlank, error) {
	path = solPath(path)
	defs, err := self.CompileDefs(ctx, path)
	if err != nil {
		return ContractDef{}, ContractBlank{}, err
	}

	name := strings.TrimSuffix(filepath.Base(path), ".sol")
	def, ok := FindContractDef(defs, path, name)
	if !ok {
		return ContractDef{}, ContractBlank{}, errors.Errorf(
			"contract %q is missing from the solc output; found contracts: %q",
			name, SortedDefNames(defs))
	}

	blank, err := def.Blank()
	if err != nil {
		return ContractDef{}, ContractBlank{}, errors.Wrapf(err, "contract %q", name)
	}
	return def, blank, nil
}

/*
Solidity compiler output for a single contract. See "ReadContractDefs" for
details.
*/
type ContractDef struct {
	FileName     string
	ContractName string
	AbiJson      string
	Code         HexBytes
}

// Validates the definition and parses its ABI.
func (self ContractDef) Blank() (ContractBlank, error) {
	return NewContractBlank([]byte(self.AbiJson), self.Code.String())
}

/*
Decodes the output of "solc --combined-json=abi,bin". Older compilers emit each
ABI as a JSON-encoded string, newer ones as a JSON array; both are accepted.
Keys of the resulting map have the form "<filePath>:<contractName>".
*/
func ReadContractDefs(src io.Reader) (map[string]ContractDef, error) {
	var input struct {
		Contracts map[string]struct {
			Abi json.RawMessage
			Bin string
		}
	}

	err := json.NewDecoder(src).Decode(&input)
	if err != nil {
		return nil, errors.Wrap(err, `failed to read Solidity output`)
	}

	out := make(map[string]ContractDef, len(input.Contracts))
	for key, inp := range input.Contracts {
		sep := strings.LastIndex(key, ":")
		if sep < 0 {
			return nil, errors.Errorf(`unexpected contract key %q in Solidity output`, key)
		}

		abiJson := string(inp.Abi)
		if strings.HasPrefix(abiJson, `"`) {
			err := json.Unmarshal(inp.Abi, &abiJson)
			if err != nil {
				return nil, errors.Wrapf(err, `failed to decode ABI of %q`, key)
			}
		}

		code, err := HexDecode([]byte("0x" + strings.TrimPrefix(inp.Bin, "0x")))
		if err != nil {
			return nil, errors.Wrapf(err, `failed to decode bytecode of %q`, key)
		}

		out[key] = ContractDef{
			FileName:     key[:sep],
			ContractName: key[sep+1:],
			AbiJson:      abiJson,
			Code:         code,
		}
	}

	return out, nil
}

// Decodes compiler output from a file.
func ReadContractDefsFile(path string) (map[string]ContractDef, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer file.Close()
	return ReadContractDefs(file)
}

/*
Finds a contract by name, preferring the one defined in the given file when
several files declare the same name.
*/
func FindContractDef(defs map[string]ContractDef, path string, name string) (ContractDef, bool) {
	def, ok := defs[path+":"+name]
	if ok {
		return def, true
	}

	var found []ContractDef
	for _, def := range defs {
		if def.ContractName == name {
			found = append(found, def)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	for _, def := range found {
		if filepath.Clean(def.FileName) == filepath.Clean(path) {
			return def, true
		}
	}
	return ContractDef{}, false
}

func SortedDefNames(defs map[string]ContractDef) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
