// Package stylus packages compiled WASM contract modules into on-chain code
// objects, builds and submits the transactions that deploy and activate them
// on Stylus-enabled Arbitrum chains, and verifies historical deployments
// against a local rebuild.
//
// The pipeline runs in fixed stages:
//
//	raw WASM -> NormalizeWasm -> CompressWasm -> SplitIfLarge -> Code
//
// NormalizeWasm strips build metadata and injects a project-identity section,
// CompressWasm applies brotli at the protocol's fixed compression level, and
// SplitIfLarge wraps the result either as a single ContractCode or, when it
// exceeds the chain's code-size ceiling, as an ordered set of CodeFragments
// plus a root object referencing their deployed addresses.
//
// # Deployment
//
// A Deployer drives submission through an explicit state machine
// (Idle -> EstimatingGas -> AwaitingFeeDecision -> Submitting ->
// AwaitingReceipt -> terminal), one transaction at a time against a single
// signer:
//
//	provider, _ := stylus.DialProvider(ctx, endpoint)
//	signer := stylus.NewSigner(key, chainID)
//	deployer := stylus.NewDeployer(provider, signer)
//
//	code, uncompressed, _ := stylus.PackageWasm(rawWasm, projectHash, stylus.DefaultMaxCodeSize)
//	addr, _ := deployer.DeployCode(ctx, code, uncompressed)
//
// Contracts with a Stylus constructor deploy through the well-known factory
// contract instead, via DeployWithConstructor.
//
// # Activation
//
// An Activator simulates activateProgram against the ArbWasm precompile with
// state overrides to learn the one-time data fee, bumps it by a configured
// percentage, and submits the real activation transaction.
//
// # Verification
//
// A Verifier rebuilds the expected deployment calldata from local sources and
// diffs it byte-for-byte against a historical transaction, reporting prelude
// mismatches and payload-length differences without assuming which side is
// authoritative.
//
// All remote interaction goes through the ChainProvider interface; DialProvider
// returns an implementation backed by go-ethereum's ethclient and gethclient.
package stylus
