// Package compiler turns the bundled Solidity templates into deployable
// artifacts by driving an external solc binary in standard-JSON mode.
package compiler

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/pkg/logger"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

//go:embed contracts/*.sol
var templates embed.FS

// Kind selects one of the bundled contract templates.
type Kind string

const (
	KindERC20   Kind = "erc20"
	KindERC721  Kind = "erc721"
	KindERC1155 Kind = "erc1155"
)

// ParseKind matches s case-insensitively against the known kinds.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindERC20:
		return KindERC20, true
	case KindERC721:
		return KindERC721, true
	case KindERC1155:
		return KindERC1155, true
	}
	return "", false
}

// ContractName is the Solidity contract and file name of the template.
func (k Kind) ContractName() string {
	switch k {
	case KindERC20:
		return "ERC20Contract"
	case KindERC721:
		return "ERC721Contract"
	case KindERC1155:
		return "ERC1155Contract"
	}
	return ""
}

// Source returns the bundled template for k.
func Source(k Kind) (string, error) {
	name := k.ContractName()
	if name == "" {
		return "", xerrors.Newf(xerrors.CodeInvalidArgument, "unknown contract kind %q", k)
	}
	raw, err := templates.ReadFile("contracts/" + name + ".sol")
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeCompilationFailed, err, "read contract template")
	}
	return string(raw), nil
}

// Artifact is the compiler output needed for deployment.
type Artifact struct {
	Name     string
	ABI      string
	Bytecode []byte
}

// Compiler compiles a bundled template.
type Compiler interface {
	Compile(ctx context.Context, kind Kind) (Artifact, error)
}

// Solc runs the solc executable with --standard-json.
type Solc struct {
	executable    string
	optimizerRuns int
	log           *slog.Logger
}

// Option customises Solc.
type Option func(*Solc)

// WithOptimizerRuns sets the optimizer runs; zero or less disables it.
func WithOptimizerRuns(runs int) Option {
	return func(s *Solc) {
		s.optimizerRuns = runs
	}
}

// NewSolc returns a compiler invoking executable, "solc" when empty.
func NewSolc(executable string, opts ...Option) *Solc {
	if strings.TrimSpace(executable) == "" {
		executable = "solc"
	}
	s := &Solc{executable: executable, optimizerRuns: 200, log: logger.Named("compiler")}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type standardInput struct {
	Language string                    `json:"language"`
	Sources  map[string]standardSource `json:"sources"`
	Settings standardSettings          `json:"settings"`
}

type standardSource struct {
	Content string `json:"content"`
}

type standardSettings struct {
	Optimizer       optimizer                      `json:"optimizer"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

type optimizer struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs,omitempty"`
}

type standardOutput struct {
	Errors    []Diagnostic                         `json:"errors"`
	Contracts map[string]map[string]contractOutput `json:"contracts"`
}

type contractOutput struct {
	ABI json.RawMessage `json:"abi"`
	EVM struct {
		Bytecode struct {
			Object string `json:"object"`
		} `json:"bytecode"`
	} `json:"evm"`
}

// Diagnostic is one compiler message.
type Diagnostic struct {
	Severity         string `json:"severity"`
	Type             string `json:"type"`
	Message          string `json:"message"`
	FormattedMessage string `json:"formattedMessage"`
}

// Compile compiles the template for kind. Any error-severity diagnostic
// fails the compilation; warnings are only logged.
func (s *Solc) Compile(ctx context.Context, kind Kind) (Artifact, error) {
	source, err := Source(kind)
	if err != nil {
		return Artifact{}, err
	}
	name := kind.ContractName()
	file := name + ".sol"

	input := standardInput{
		Language: "Solidity",
		Sources:  map[string]standardSource{file: {Content: source}},
		Settings: standardSettings{
			Optimizer: optimizer{Enabled: s.optimizerRuns > 0, Runs: s.optimizerRuns},
			OutputSelection: map[string]map[string][]string{
				"*": {"*": {"abi", "evm.bytecode.object"}},
			},
		},
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return Artifact{}, xerrors.Wrap(xerrors.CodeCompilationFailed, err, "encode compiler input")
	}

	command := exec.CommandContext(ctx, s.executable, "--standard-json")
	command.Stdin = bytes.NewReader(encoded)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	s.log.Debug("compiling contract", "contract", name)
	if err := command.Run(); err != nil {
		return Artifact{}, xerrors.Wrap(xerrors.CodeCompilationFailed, fmt.Errorf("%v, stderr=%s", err, strings.TrimSpace(stderr.String())), "run solc")
	}

	var output standardOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return Artifact{}, xerrors.Wrap(xerrors.CodeCompilationFailed, err, "decode compiler output")
	}

	var failures []string
	for _, d := range output.Errors {
		if strings.EqualFold(d.Severity, "error") {
			failures = append(failures, firstNonEmpty(d.FormattedMessage, d.Message))
			continue
		}
		s.log.Warn("compilation warning", "contract", name, "type", d.Type, "message", d.Message)
	}
	if len(failures) > 0 {
		return Artifact{}, xerrors.New(xerrors.CodeCompilationFailed, "Compilation errors: "+strings.Join(failures, "; "))
	}

	contract, ok := output.Contracts[file][name]
	if !ok {
		return Artifact{}, xerrors.New(xerrors.CodeCompilationFailed, "Contract compilation result is empty")
	}
	artifact := Artifact{Name: name, ABI: string(contract.ABI)}
	if object := strings.TrimSpace(contract.EVM.Bytecode.Object); object != "" {
		if !strings.HasPrefix(object, "0x") {
			object = "0x" + object
		}
		artifact.Bytecode, err = hexutil.Decode(object)
		if err != nil {
			return Artifact{}, xerrors.Wrap(xerrors.CodeCompilationFailed, err, "decode bytecode")
		}
	}
	s.log.Debug("contract compiled", "contract", name, "bytecode_size", len(artifact.Bytecode))
	return artifact, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var _ Compiler = (*Solc)(nil)
