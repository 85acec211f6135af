package config

import (
	"encoding/json"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"
)

const (
	ledgerDbName = "ledger"
	keyFileName  = "nodekey"
)

type Config struct {
	DataDir   string
	Consensus *ConsensusConf
	Vdf       *VdfConf
	Sharding  *ShardingConf
	Mempool   *Mempool
	P2P       *P2P
	Log       *LogConf
}

type LogConf struct {
	Verbosity  int
	File       string
	MaxSizeMb  int
	MaxBackups int
	Json       bool
}

func (c *Config) LedgerDir() string {
	return filepath.Join(c.DataDir, ledgerDbName)
}

func (c *Config) KeyFile() string {
	return filepath.Join(c.DataDir, "keystore", keyFileName)
}

func (c *Config) SetApplyFlags(ctx *cli.Context) error {
	if file := ctx.String(CfgFileFlag.Name); file != "" {
		if err := loadConfig(file, c); err != nil {
			return err
		}
	}
	applyFlags(ctx, c)
	return c.Validate()
}

func MakeConfig(ctx *cli.Context) (*Config, error) {
	cfg := GetDefaultConfig()
	if err := cfg.SetApplyFlags(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

func GetDefaultConfig() *Config {
	return &Config{
		DataDir:   DefaultDataDir,
		Consensus: GetDefaultConsensusConfig(),
		Vdf:       GetDefaultVdfConfig(),
		Sharding:  GetDefaultShardingConfig(),
		Mempool:   GetDefaultMempoolConfig(),
		P2P: &P2P{
			RelayAddr: DefaultRelayAddr,
			MaxPeers:  25,
		},
		Log: &LogConf{
			Verbosity:  3,
			MaxSizeMb:  100,
			MaxBackups: 5,
		},
	}
}

// Validate checks the invariants the consensus core relies on.
func (c *Config) Validate() error {
	if c.Consensus.SlotDuration < time.Second {
		return errors.Errorf("slot duration should be at least 1s, got %v", c.Consensus.SlotDuration)
	}
	if c.Consensus.TickInterval <= 0 || c.Consensus.TickInterval > c.Consensus.SlotDuration {
		return errors.Errorf("tick interval %v should be positive and not exceed slot duration %v", c.Consensus.TickInterval, c.Consensus.SlotDuration)
	}
	if c.Consensus.RequiredPatienceSeconds == 0 {
		return errors.New("required patience should be positive")
	}
	if c.Consensus.MaxBlockTxs <= 0 {
		return errors.New("max block txs should be positive")
	}
	if c.Vdf.Difficulty == 0 {
		return errors.New("vdf difficulty should be positive")
	}
	if c.Sharding.TotalShards == 0 {
		return errors.New("total shards should be positive")
	}
	if c.Sharding.GlobalTpsCapacity < c.Sharding.ShardTpsLimit {
		return errors.Errorf("global tps capacity %v is less than shard tps limit %v", c.Sharding.GlobalTpsCapacity, c.Sharding.ShardTpsLimit)
	}
	if c.P2P.RelayAddr != "" {
		if _, err := c.P2P.Relay(); err != nil {
			return err
		}
	}
	return nil
}

func applyFlags(ctx *cli.Context, cfg *Config) {
	if ctx.IsSet(DataDirFlag.Name) {
		cfg.DataDir = ctx.String(DataDirFlag.Name)
	}

	applyConsensusFlags(ctx, cfg)
	applyVdfFlags(ctx, cfg)
	applyShardingFlags(ctx, cfg)
	applyP2PFlags(ctx, cfg)
	applyLogFlags(ctx, cfg)
}

func applyConsensusFlags(ctx *cli.Context, cfg *Config) {
	if ctx.IsSet(StandaloneFlag.Name) {
		cfg.Consensus.Standalone = ctx.Bool(StandaloneFlag.Name)
	}
	if ctx.IsSet(SlotDurationFlag.Name) {
		cfg.Consensus.SlotDuration = ctx.Duration(SlotDurationFlag.Name)
	}
	if ctx.IsSet(PatienceFlag.Name) {
		cfg.Consensus.RequiredPatienceSeconds = ctx.Uint64(PatienceFlag.Name)
	}
	if ctx.IsSet(GenesisTimeFlag.Name) {
		cfg.Consensus.GenesisTime = ctx.Int64(GenesisTimeFlag.Name)
	}
}

func applyVdfFlags(ctx *cli.Context, cfg *Config) {
	if ctx.IsSet(VdfDifficultyFlag.Name) {
		cfg.Vdf.Difficulty = ctx.Uint64(VdfDifficultyFlag.Name)
	}
}

func applyShardingFlags(ctx *cli.Context, cfg *Config) {
	if ctx.IsSet(TotalShardsFlag.Name) {
		cfg.Sharding.TotalShards = uint32(ctx.Uint(TotalShardsFlag.Name))
	}
}

func applyP2PFlags(ctx *cli.Context, cfg *Config) {
	if ctx.IsSet(RelayFlag.Name) {
		cfg.P2P.RelayAddr = ctx.String(RelayFlag.Name)
	}
}

func applyLogFlags(ctx *cli.Context, cfg *Config) {
	if ctx.IsSet(VerbosityFlag.Name) {
		cfg.Log.Verbosity = ctx.Int(VerbosityFlag.Name)
	}
	if ctx.IsSet(LogFileFlag.Name) {
		cfg.Log.File = ctx.String(LogFileFlag.Name)
	}
	if ctx.IsSet(JsonLogFlag.Name) {
		cfg.Log.Json = ctx.Bool(JsonLogFlag.Name)
	}
}

func loadConfig(configPath string, conf *Config) error {
	if _, err := os.Stat(configPath); err != nil {
		return errors.Errorf("Config file cannot be found, path: %v", configPath)
	}

	if jsonFile, err := os.Open(configPath); err != nil {
		return errors.Errorf("Config file cannot be opened, path: %v", configPath)
	} else {
		defer jsonFile.Close()
		byteValue, _ := ioutil.ReadAll(jsonFile)
		err := json.Unmarshal(byteValue, &conf)
		if err != nil {
			return errors.Wrapf(err, "Cannot parse JSON config, path: %v", configPath)
		}
		return nil
	}
}
