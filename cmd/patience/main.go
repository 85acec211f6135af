package main

import (
	"fmt"
	"github.com/patience-network/patience-go/common/eventbus"
	"github.com/patience-network/patience-go/config"
	"github.com/patience-network/patience-go/events"
	"github.com/patience-network/patience-go/log"
	"github.com/patience-network/patience-go/node"
	"gopkg.in/urfave/cli.v1"
	"os"
	"os/signal"
	"syscall"
)

var (
	version = "0.1.0"
)

func main() {
	app := cli.NewApp()
	app.Name = "patience"
	app.Usage = "Proof of Patience consensus node"
	app.Version = version

	app.Flags = []cli.Flag{
		config.CfgFileFlag,
		config.DataDirFlag,
		config.VerbosityFlag,
		config.LogFileFlag,
		config.JsonLogFlag,
		config.StandaloneFlag,
		config.SlotDurationFlag,
		config.PatienceFlag,
		config.GenesisTimeFlag,
		config.VdfDifficultyFlag,
		config.TotalShardsFlag,
		config.RelayFlag,
	}

	app.Action = func(context *cli.Context) error {
		cfg, err := config.MakeConfig(context)
		if err != nil {
			return err
		}
		log.Setup(log.Config{
			Verbosity:  cfg.Log.Verbosity,
			File:       cfg.Log.File,
			MaxSizeMb:  cfg.Log.MaxSizeMb,
			MaxBackups: cfg.Log.MaxBackups,
			Json:       cfg.Log.Json,
		})

		n, err := node.NewNode(cfg, version)
		if err != nil {
			return err
		}
		_, err = n.EventBus().Subscribe(events.NodeStatusEventID, func(e eventbus.Event) {
			log.Info("Node status", "status", e.(*events.NodeStatusEvent).Status)
		})
		if err != nil {
			n.Destroy()
			return err
		}

		if err := n.Start(); err != nil {
			n.Destroy()
			return err
		}
		info := n.GetSelfNodeInfo()
		log.Info("Node identity", "peerId", info.PeerId, "shard", info.ShardId, "totalShards", info.TotalShards)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		log.Info("Shutting down")
		return n.Destroy()
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
