package config

import (
	"gopkg.in/urfave/cli.v1"
	"time"
)

const (
	DefaultDataDir     = "datadir"
	DefaultRelayAddr   = "/ip4/127.0.0.1/tcp/40405"
	DefaultGenesisTime = int64(1577836800)
)

var (
	CfgFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "JSON configuration file",
	}
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "datadir for ledger and node key",
	}
	VerbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Log verbosity (0 crit ... 5 trace)",
		Value: 3,
	}
	LogFileFlag = cli.StringFlag{
		Name:  "logfile",
		Usage: "Also write logs to this file (rotated)",
	}
	JsonLogFlag = cli.BoolFlag{
		Name:  "jsonlog",
		Usage: "Write logs as JSON",
	}
	StandaloneFlag = cli.BoolFlag{
		Name:  "standalone",
		Usage: "Produce blocks alone without relay",
	}
	SlotDurationFlag = cli.DurationFlag{
		Name:  "slot",
		Usage: "Slot duration",
		Value: time.Second * 2,
	}
	PatienceFlag = cli.Uint64Flag{
		Name:  "patience",
		Usage: "Required patience in seconds before a node may lead",
	}
	GenesisTimeFlag = cli.Int64Flag{
		Name:  "genesistime",
		Usage: "Genesis time (unix), start of slot 0",
	}
	VdfDifficultyFlag = cli.Uint64Flag{
		Name:  "vdfdifficulty",
		Usage: "Sequential iterations per VDF proof",
	}
	TotalShardsFlag = cli.UintFlag{
		Name:  "shards",
		Usage: "Total number of shards",
	}
	RelayFlag = cli.StringFlag{
		Name:  "relay",
		Usage: "Relay multiaddr",
	}
)
