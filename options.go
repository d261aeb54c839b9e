package stylus

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the project-level settings shared by the deployer, activator,
// and verifier. Zero-value fields fall back to protocol defaults.
type Config struct {
	// MaxCodeSize is the ceiling on deployed code object length.
	MaxCodeSize int

	// DataFeeBumpPercent pads the simulated activation data fee to absorb
	// fee drift between simulation and submission.
	DataFeeBumpPercent uint64

	// MaxFeePerGas caps the fee of submitted transactions, in wei. When nil
	// the current gas price is queried once per transaction instead.
	MaxFeePerGas *big.Int

	// Factory is the StylusDeployer contract used for constructor-mediated
	// deployments.
	Factory common.Address

	// Salt is passed through to the factory's deploy entry.
	Salt common.Hash

	// ReceiptPollInterval is the delay between receipt queries while a
	// transaction is pending.
	ReceiptPollInterval time.Duration

	// Logger receives progress output. Defaults to the root logger.
	Logger log.Logger
}

func defaultConfig() *Config {
	return &Config{
		MaxCodeSize:         DefaultMaxCodeSize,
		DataFeeBumpPercent:  20,
		Factory:             DefaultFactoryAddress,
		ReceiptPollInterval: 500 * time.Millisecond,
		Logger:              log.Root(),
	}
}

// Option configures the deployment pipeline.
type Option func(*Config)

// WithMaxCodeSize overrides the deployed code size ceiling.
func WithMaxCodeSize(size int) Option {
	return func(c *Config) {
		c.MaxCodeSize = size
	}
}

// WithDataFeeBump sets the percentage added to the simulated data fee.
// Default is 20.
func WithDataFeeBump(percent uint64) Option {
	return func(c *Config) {
		c.DataFeeBumpPercent = percent
	}
}

// WithMaxFeePerGas sets a fixed fee cap in wei instead of querying the
// current gas price.
func WithMaxFeePerGas(wei *big.Int) Option {
	return func(c *Config) {
		c.MaxFeePerGas = wei
	}
}

// WithFactory overrides the StylusDeployer factory address.
func WithFactory(addr common.Address) Option {
	return func(c *Config) {
		c.Factory = addr
	}
}

// WithSalt sets the create2 salt passed to the factory.
func WithSalt(salt common.Hash) Option {
	return func(c *Config) {
		c.Salt = salt
	}
}

// WithReceiptPollInterval sets the delay between receipt queries.
func WithReceiptPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.ReceiptPollInterval = d
	}
}

// WithLogger routes progress output to the given logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
