// Package swap plans and executes same-chain token swaps through a routing
// aggregator. A route is made of opaque steps; executing a step appends
// process records whose last entry decides the outcome.
package swap

import (
	"context"
	"math/big"

	"OpenMCP-Arbitrum/internal/lifi"
	"OpenMCP-Arbitrum/internal/web3"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the state of one process record.
type Status string

const (
	StatusStarted Status = "STARTED"
	StatusPending Status = "PENDING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

// Process types recorded during execution.
const (
	ProcessTokenAllowance = "TOKEN_ALLOWANCE"
	ProcessSwap           = "SWAP"
)

// Process is one recorded side effect of a step.
type Process struct {
	Type    string `json:"type"`
	Status  Status `json:"status"`
	TxHash  string `json:"txHash,omitempty"`
	Message string `json:"message,omitempty"`
}

// StepExecution collects the processes of one route step.
type StepExecution struct {
	StepID  string    `json:"stepId"`
	Tool    string    `json:"tool"`
	Process []Process `json:"process"`
}

// Execution is the record of running a route.
type Execution struct {
	RouteID string          `json:"routeId"`
	Steps   []StepExecution `json:"steps"`
}

// Outcome returns the final process of the final step.
func (e Execution) Outcome() (Process, bool) {
	if len(e.Steps) == 0 {
		return Process{}, false
	}
	last := e.Steps[len(e.Steps)-1]
	if len(last.Process) == 0 {
		return Process{}, false
	}
	return last.Process[len(last.Process)-1], true
}

// Request asks for routes converting Amount base units of FromToken into
// ToToken on one chain. Tokens may be symbols or addresses.
type Request struct {
	ChainID     int64
	FromToken   string
	ToToken     string
	Amount      *big.Int
	FromAddress common.Address
	Slippage    *float64
}

// Router is the routing aggregator as seen by the swap action.
type Router interface {
	Routes(ctx context.Context, req Request) ([]lifi.Route, error)
	Execute(ctx context.Context, client web3.WriteClient, route lifi.Route) (Execution, error)
}
