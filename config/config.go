package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
)

const DefaultProposalCacheSize = 1024

type QuadAppConfig struct {
	Home string `mapstructure:"-"`
	// IndexerDB is the sqlite file of the event indexer, relative to Home.
	// Empty disables the indexer.
	IndexerDB         string `mapstructure:"indexer_db"`
	ServiceListenAddr string `mapstructure:"service_listen_addr"`
	ProposalCacheSize int    `mapstructure:"proposal_cache_size"`
	Metrics           bool   `mapstructure:"metrics"`
}

func DefaultQuadAppConfig(home string) *QuadAppConfig {
	return &QuadAppConfig{
		Home:              home,
		IndexerDB:         "indexer.db",
		ServiceListenAddr: "127.0.0.1:8080",
		ProposalCacheSize: DefaultProposalCacheSize,
		Metrics:           false,
	}
}

func (c *QuadAppConfig) DataDir() string {
	return filepath.Join(c.Home, "data")
}

func (c *QuadAppConfig) IndexerPath() string {
	if c.IndexerDB == "" || filepath.IsAbs(c.IndexerDB) {
		return c.IndexerDB
	}
	return filepath.Join(c.Home, c.IndexerDB)
}

func (c *QuadAppConfig) ValidateBasic() error {
	if c.ProposalCacheSize < 0 {
		return errors.New("app.proposal_cache_size can't be negative")
	}
	if c.IndexerDB != "" && c.ServiceListenAddr == "" {
		return errors.New("app.service_listen_addr is required when the indexer is enabled")
	}
	return nil
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *QuadAppConfig `mapstructure:"app"`
}

func DefaultHome() string {
	return os.ExpandEnv("$HOME/.quad")
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = DefaultHome()
	}
	cfg := &Config{
		DefaultQuadCometConfig(),
		DefaultQuadAppConfig(home),
	}
	cfg.SetRoot(home)
	_ = os.MkdirAll(filepath.Join(home, "config"), 0o755)
	return cfg
}

func (c *Config) ValidateBasic() error {
	if err := c.Config.ValidateBasic(); err != nil {
		return err
	}
	if err := c.App.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [app] section: %w", err)
	}
	return nil
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

// DefaultQuadCometConfig shortens the consensus timeouts so a tick passes
// roughly every second on a single node.
func DefaultQuadCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1000
	return cometConfig
}
