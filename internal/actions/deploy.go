package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"OpenMCP-Arbitrum/internal/compiler"
	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/pkg/logger"
	"OpenMCP-Arbitrum/pkg/plugin"
)

// DeployAction compiles a bundled template and deploys it.
type DeployAction struct {
	deps Deps
	log  *slog.Logger
}

// NewDeployAction returns the deploy action.
func NewDeployAction(deps Deps) *DeployAction {
	return &DeployAction{deps: deps.withDefaults(), log: actionLogger().With("action", NameDeploy)}
}

func required(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("Token %s is required", field))
	}
	return nil
}

// DeployERC20 deploys a fungible token with totalSupply whole tokens minted
// to the signer.
func (a *DeployAction) DeployERC20(ctx context.Context, params DeployERC20Params) (*DeployResponse, error) {
	a.log.Debug("deployTokenParams", "params", params)
	if err := required(params.Name, "name"); err != nil {
		return nil, err
	}
	if err := required(params.Symbol, "symbol"); err != nil {
		return nil, err
	}
	if params.Decimals == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Token decimals is required")
	}
	if params.Decimals < 0 || params.Decimals > 255 {
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "Token decimals %d out of range", params.Decimals)
	}
	if err := required(params.TotalSupply, "total supply"); err != nil {
		return nil, err
	}
	decimals := uint8(params.Decimals)
	supply, err := parseAmount(Amount(params.TotalSupply), decimals)
	if err != nil {
		return nil, err
	}
	return a.deploy(ctx, params.Chain, compiler.KindERC20, params.Name, params.Symbol, decimals, supply)
}

// DeployERC721 deploys a single item NFT collection.
func (a *DeployAction) DeployERC721(ctx context.Context, params DeployERC721Params) (*DeployResponse, error) {
	a.log.Debug("deployNftParams", "params", params)
	if err := required(params.Name, "name"); err != nil {
		return nil, err
	}
	if err := required(params.Symbol, "symbol"); err != nil {
		return nil, err
	}
	if err := required(params.BaseURI, "baseURI"); err != nil {
		return nil, err
	}
	return a.deploy(ctx, params.Chain, compiler.KindERC721, params.Name, params.Symbol, params.BaseURI)
}

// DeployERC1155 deploys a multi token collection.
func (a *DeployAction) DeployERC1155(ctx context.Context, params DeployERC1155Params) (*DeployResponse, error) {
	a.log.Debug("deploy1155Params", "params", params)
	if err := required(params.Name, "name"); err != nil {
		return nil, err
	}
	if err := required(params.BaseURI, "baseURI"); err != nil {
		return nil, err
	}
	return a.deploy(ctx, params.Chain, compiler.KindERC1155, params.Name, params.BaseURI)
}

func (a *DeployAction) deploy(ctx context.Context, chainName string, kind compiler.Kind, args ...any) (*DeployResponse, error) {
	w := a.deps.Wallet
	cfg, err := resolveChain(w, chainName)
	if err != nil {
		return nil, err
	}
	chainName = cfg.Name
	if a.deps.Compiler == nil {
		return nil, xerrors.New(xerrors.CodeCompilationFailed, "compiler is not configured")
	}
	artifact, err := a.deps.Compiler.Compile(ctx, kind)
	if err != nil {
		return nil, err
	}
	if len(artifact.Bytecode) == 0 {
		return nil, xerrors.New(xerrors.CodeEmptyBytecode, "")
	}

	if err := w.SwitchChain(chainName, ""); err != nil {
		return nil, err
	}
	client, err := w.WalletClient(ctx, chainName)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	hash, err := client.DeployContract(ctx, artifact.ABI, artifact.Bytecode, args...)
	if err != nil {
		return nil, err
	}
	a.log.Debug("Waiting for deployment transaction...", "hash", hash.Hex())
	receipt, err := waitConfirmed(ctx, w, chainName, hash)
	if err != nil {
		return nil, err
	}
	a.log.Debug("Contract deployed successfully!", "address", receipt.ContractAddress.Hex())
	logger.Audit().Info("contract deployed", "chain", chainName, "kind", string(kind), "address", receipt.ContractAddress.Hex(), "hash", hash.Hex())
	return &DeployResponse{
		Chain:   chainName,
		Kind:    string(kind),
		TxHash:  hash.Hex(),
		Address: receipt.ContractAddress.Hex(),
	}, nil
}

// Deploy dispatches on the contract type of extracted parameters.
func (a *DeployAction) Deploy(ctx context.Context, params DeployParams) (*DeployResponse, error) {
	kind, ok := compiler.ParseKind(params.ContractType)
	if !ok {
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "Unsupported contract type %q", params.ContractType)
	}
	switch kind {
	case compiler.KindERC20:
		return a.DeployERC20(ctx, DeployERC20Params{
			Chain:       params.Chain,
			Name:        params.Name,
			Symbol:      params.Symbol,
			Decimals:    int(params.Decimals),
			TotalSupply: string(params.TotalSupply),
		})
	case compiler.KindERC721:
		return a.DeployERC721(ctx, DeployERC721Params{
			Chain:   params.Chain,
			Name:    params.Name,
			Symbol:  params.Symbol,
			BaseURI: params.BaseURI,
		})
	default:
		return a.DeployERC1155(ctx, DeployERC1155Params{
			Chain:   params.Chain,
			Name:    params.Name,
			BaseURI: params.BaseURI,
		})
	}
}

func (a *DeployAction) handle(ctx context.Context, inv plugin.Invocation, cb plugin.Callback) error {
	a.log.Info("Starting deploy action...")
	var params DeployParams
	if err := decodeParams(inv.Params, &params); err != nil {
		return fail(a.log, cb, "Deploy", err)
	}
	resp, err := a.Deploy(ctx, params)
	if err != nil {
		return fail(a.log, cb, "Deploy", err)
	}
	succeed(cb, fmt.Sprintf("Successfully create contract - %s", resp.Address), resp)
	return nil
}

// Definition describes the action to the host.
func (a *DeployAction) Definition() plugin.Action {
	return plugin.Action{
		Name:        NameDeploy,
		Description: "Deploy token contracts (ERC20/721/1155) based on user specifications",
		Similes:     []string{"DEPLOY_ERC20", "DEPLOY_ERC721", "DEPLOY_ERC1155", "CREATE_TOKEN", "CREATE_NFT", "CREATE_1155"},
		Template:    DeployTemplate,
		Validate:    HasPrivateKey,
		Handler:     a.handle,
		Examples: [][]plugin.Example{
			{{User: "{{user1}}", Text: "deploy an ERC20 token with name 'MyToken', symbol 'MTK', decimals 18, total supply 10000", Action: NameDeploy}},
			{{User: "{{user1}}", Text: "Deploy an ERC721 NFT contract with name 'MyNFT', symbol 'MNFT', baseURI 'https://my-nft-base-uri.com'", Action: NameDeploy}},
			{{User: "{{user1}}", Text: "Deploy an ERC1155 contract with name 'My1155', baseURI 'https://my-1155-base-uri.com'", Action: NameDeploy}},
		},
	}
}
