// Package config loads the settings of a wallet client from the command line
// and an optional ini file, sets up logging and builds the configured client.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/xchain-go/xchain-utxo/chain"
	"github.com/xchain-go/xchain-utxo/netparams"
	"github.com/xchain-go/xchain-utxo/wallet"
)

const (
	defaultChain          = "bitcoin"
	defaultNetwork        = "testnet"
	defaultLogLevel       = "info"
	defaultLogFilename    = "xchain-utxo.log"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
)

var (
	// ErrConfigNotFound is returned when the config file does not exist.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidLogLevel is returned for an unknown log level or
	// subsystem.
	ErrInvalidLogLevel = errors.New("invalid debug level")

	// ErrInvalidOption is returned when an option is out of range.
	ErrInvalidOption = errors.New("invalid option")
)

// Config defines the configuration options of a wallet client.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`

	Chain   string `long:"chain" description:"UTXO chain {bitcoin, litecoin}"`
	Network string `long:"network" description:"Network of the chain {mainnet, testnet}"`

	LogDir         string `long:"logdir" description:"Directory to log output, no log file is written when empty"`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum log files to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum log file size in MB"`
	DebugLevel     string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set log levels for individual subsystems"`

	SochainURL string   `long:"sochainurl" description:"Base URL of the sochain v2 API"`
	HaskoinURL string   `long:"haskoinurl" description:"Haskoin endpoint including the network segment"`
	EsploraURL string   `long:"esploraurl" description:"Esplora REST endpoint"`
	Indexers   []string `long:"indexer" description:"Indexer to scan, in order of preference -- may be repeated {sochain, haskoin, esplora}"`

	NodeHost string `long:"nodehost" description:"JSON-RPC node used to broadcast, e.g. https://host:port"`
	NodeUser string `long:"nodeuser" description:"Username of the JSON-RPC node"`
	NodePass string `long:"nodepass" default-mask:"-" description:"Password of the JSON-RPC node"`

	HTTPTimeout   time.Duration `long:"httptimeout" description:"Timeout of the requests to the indexers"`
	MaxHexFetches int           `long:"maxhexfetches" description:"Maximum concurrent raw transaction lookups of a scan"`
	KeyCacheSize  uint64        `long:"keycachesize" description:"Number of derived keys kept in memory"`

	chain   netparams.Chain
	network netparams.Network
}

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() Config {
	return Config{
		Chain:          defaultChain,
		Network:        defaultNetwork,
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		DebugLevel:     defaultLogLevel,
		HTTPTimeout:    chain.DefaultHTTPTimeout,
		MaxHexFetches:  chain.DefaultHexFetchLimit,
		KeyCacheSize:   wallet.DefaultKeyCacheSize,
	}
}

// LoadConfig initializes and parses the config using a config file and the
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in the options taking precedence over the config file
// which in turn takes precedence over the defaults.
func LoadConfig(args []string) (*Config, error) {
	// Pre-parse the command line options to see if an alternative config
	// file was specified. Any errors aside from the help message are
	// reported by the main parse below.
	preCfg := DefaultConfig()
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)

	if preCfg.ConfigFile != "" {
		err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %v", ErrConfigNotFound,
					err)
			}

			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Parse the command line options again to ensure they take
	// precedence.
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks the options and resolves the chain and network.
func (c *Config) validate() error {
	var err error

	c.chain, err = netparams.ParseChain(c.Chain)
	if err != nil {
		return err
	}

	c.network, err = netparams.ParseNetwork(c.Network)
	if err != nil {
		return err
	}

	if _, err := parseDebugLevel(c.DebugLevel); err != nil {
		return err
	}

	// Indexers may also be given as a comma separated list, which is the
	// natural form in the config file.
	var indexers []string
	for _, entry := range c.Indexers {
		for _, name := range strings.Split(entry, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}

			switch name {
			case wallet.IndexerSochain, wallet.IndexerHaskoin,
				wallet.IndexerEsplora:

				indexers = append(indexers, name)

			default:
				return fmt.Errorf("%w: %q", wallet.ErrUnknownIndexer,
					name)
			}
		}
	}
	c.Indexers = indexers

	switch {
	case c.HTTPTimeout <= 0:
		return fmt.Errorf("%w: httptimeout must be positive, got %v",
			ErrInvalidOption, c.HTTPTimeout)

	case c.MaxHexFetches < 0:
		return fmt.Errorf("%w: maxhexfetches must not be negative, "+
			"got %d", ErrInvalidOption, c.MaxHexFetches)

	case c.MaxLogFiles < 0 || c.MaxLogFileSize <= 0:
		return fmt.Errorf("%w: log rotation of %d files of %d MB",
			ErrInvalidOption, c.MaxLogFiles, c.MaxLogFileSize)
	}

	return nil
}

// ChainParams returns the parameters of the configured chain and network.
func (c *Config) ChainParams() (*netparams.Params, error) {
	return netparams.Lookup(c.chain, c.network)
}

// BackendConfig returns the remote services of the configuration.
func (c *Config) BackendConfig() wallet.BackendConfig {
	return wallet.BackendConfig{
		SochainURL: c.SochainURL,
		HaskoinURL: c.HaskoinURL,
		EsploraURL: c.EsploraURL,
		Node: chain.NodeClientConfig{
			Host: c.NodeHost,
			User: c.NodeUser,
			Pass: c.NodePass,
		},
		Indexers:   c.Indexers,
		HTTPClient: &http.Client{Timeout: c.HTTPTimeout},
	}
}

// NewWalletClient creates the client of the configured chain over seed.
func (c *Config) NewWalletClient(seed []byte) (wallet.WalletClient, error) {
	return wallet.NewClient(c.chain, wallet.ClientConfig{
		Network:       c.network,
		Seed:          seed,
		NewBackend:    c.BackendConfig().Factory(),
		KeyCacheSize:  c.KeyCacheSize,
		HexFetchLimit: c.MaxHexFetches,
	})
}
