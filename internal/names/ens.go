package names

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	xerrors "OpenMCP-Arbitrum/internal/errors"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DefaultENSRegistry is the ENS registry deployed on Ethereum mainnet.
var DefaultENSRegistry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

const ensABIJSON = `[
{"type":"function","name":"resolver","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"addr","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}
]`

var ensABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ensABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Caller executes read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ENSResolver resolves names through the ENS registry and the resolver it
// points at.
type ENSResolver struct {
	caller   Caller
	registry common.Address
	closer   func()
}

// ENSOption customises an ENSResolver.
type ENSOption func(*ENSResolver)

// WithRegistry overrides the registry contract address.
func WithRegistry(addr common.Address) ENSOption {
	return func(r *ENSResolver) {
		if addr != (common.Address{}) {
			r.registry = addr
		}
	}
}

// NewENSResolver builds a resolver on top of caller.
func NewENSResolver(caller Caller, opts ...ENSOption) *ENSResolver {
	r := &ENSResolver{caller: caller, registry: DefaultENSRegistry}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// DialENS connects to an Ethereum mainnet RPC endpoint for name resolution.
func DialENS(ctx context.Context, rpcURL string, opts ...ENSOption) (*ENSResolver, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, xerrors.New(xerrors.CodeInitializationFail, "ens rpc url is empty")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeRPCFailure, err, "dial ens endpoint")
	}
	r := NewENSResolver(client, opts...)
	r.closer = client.Close
	return r, nil
}

// Close releases the transport opened by DialENS.
func (r *ENSResolver) Close() {
	if r.closer != nil {
		r.closer()
		r.closer = nil
	}
}

// Resolve implements Lookup.
func (r *ENSResolver) Resolve(ctx context.Context, name string) (common.Address, error) {
	node := Namehash(name)

	resolver, err := r.callAddress(ctx, r.registry, "resolver", node)
	if err != nil {
		return common.Address{}, err
	}
	if resolver == (common.Address{}) {
		return common.Address{}, nil
	}
	return r.callAddress(ctx, resolver, "addr", node)
}

func (r *ENSResolver) callAddress(ctx context.Context, to common.Address, method string, node [32]byte) (common.Address, error) {
	data, err := ensABI.Pack(method, node)
	if err != nil {
		return common.Address{}, fmt.Errorf("encode %s: %w", method, err)
	}
	raw, err := r.caller.CallContract(ctx, gethcore.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return common.Address{}, xerrors.Wrap(xerrors.CodeRPCFailure, err, "ens "+method)
	}
	if len(raw) == 0 {
		return common.Address{}, nil
	}
	out, err := ensABI.Unpack(method, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode %s: %w", method, err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected %s result %T", method, out[0])
	}
	return addr, nil
}

// Namehash implements the ENS name hashing algorithm on a lower-cased name.
func Namehash(name string) [32]byte {
	var node [32]byte
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		copy(node[:], crypto.Keccak256(node[:], labelHash))
	}
	return node
}
