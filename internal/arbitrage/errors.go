package arbitrage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// Step names the part of a cycle that failed.
type Step string

const (
	StepReadPoolA   Step = "read_pool_a"
	StepReadPoolB   Step = "read_pool_b"
	StepEstimateGas Step = "estimate_gas"
	StepNormalize   Step = "normalize"
	StepEvaluate    Step = "evaluate"
	StepPanic       Step = "panic"
	StepUnknown     Step = "unknown"
)

// ConnectivityError means the chain client could not be reached or did not
// answer in time. The next cycle retries implicitly.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity: %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ContractCallError means the node answered but the call reverted or
// returned data we could not decode.
type ContractCallError struct {
	Contract common.Address
	Method   string
	Err      error
}

func (e *ContractCallError) Error() string {
	return fmt.Sprintf("contract call %s.%s: %v", e.Contract.Hex(), e.Method, e.Err)
}

func (e *ContractCallError) Unwrap() error { return e.Err }

// ConfigurationError is the only fatal error: the process must not start.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)}
}

// CycleError tags a cycle failure with the step it came from.
type CycleError struct {
	Step Step
	Err  error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// StepOf returns the failing step recorded in err, or StepUnknown.
func StepOf(err error) Step {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Step
	}
	return StepUnknown
}

// IsFatal reports whether err must stop the process.
func IsFatal(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// classifyCallError splits eth_call failures: a JSON-RPC error object means
// the node executed the call and it failed, anything else is transport.
func classifyCallError(contract common.Address, method string, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &ContractCallError{Contract: contract, Method: method, Err: err}
	}
	return &ConnectivityError{Op: "eth_call " + method, Err: err}
}
