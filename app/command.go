// Copyright Huawei Cloud Computing Technologies Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chronogrid/chronogrid/lib/config"
	"github.com/chronogrid/chronogrid/lib/errno"
	"github.com/chronogrid/chronogrid/lib/logger"
	"github.com/chronogrid/chronogrid/lib/util"
)

// Command represents the command executed by "ts-xxx run".
type Command struct {
	Logo          string
	Usage         string
	Pidfile       string
	Logger        *logger.Logger
	Command       *cobra.Command
	Info          ServerInfo
	Version       string
	Server        Server
	Config        config.Config
	NewServerFunc func(config.Config, ServerInfo, *logger.Logger) (Server, error)

	AfterOpen func()
}

func NewCommand() *Command {
	return &Command{
		Logger: logger.NewLogger(errno.ModuleUnknown),
	}
}

// Run parses args ("-config path -pidfile path"), builds and opens the
// Server, and writes the PID file. It does not block: the caller (the
// package-level Run below) waits for a shutdown signal afterwards.
func (cmd *Command) Run(args ...string) error {
	usageFunc := func() { fmt.Fprintln(os.Stderr, cmd.Usage) }
	options, err := ParseFlags(usageFunc, args...)
	if err != nil {
		return err
	}

	if err := cmd.InitConfig(cmd.Config, options.ConfigPath); err != nil {
		return fmt.Errorf("parse config: %s", err)
	}

	fmt.Fprint(os.Stdout, cmd.Logo)

	s, err := cmd.NewServerFunc(cmd.Config, cmd.Info, cmd.Logger)
	if err != nil {
		return fmt.Errorf("create server failed: %s", err)
	}

	if err := s.Open(); err != nil {
		return fmt.Errorf("open server: %s", err)
	}

	cmd.Server = s
	if cmd.AfterOpen != nil {
		cmd.AfterOpen()
	}

	if err := WritePIDFile(options.PIDFile); err != nil {
		return fmt.Errorf("write pid file: %s", err)
	}
	cmd.Pidfile = options.PIDFile

	return nil
}

func (cmd *Command) Close() error {
	defer RemovePIDFile(cmd.Pidfile)
	if cmd.Server != nil {
		return cmd.Server.Close()
	}
	return nil
}

func (cmd *Command) InitConfig(conf config.Config, path string) error {
	if err := config.Parse(conf, path); err != nil {
		return fmt.Errorf("parse config: %s", err)
	}

	if lc := conf.GetLogging(); lc != nil {
		lc.SetApp(cmd.Info.App)
		logger.InitLogger(*lc)
	}

	if err := conf.Validate(); err != nil {
		return err
	}

	cmd.Config = conf
	return nil
}

// rootCommand builds the cobra dispatcher shared by every "ts-xxx" binary:
// a "run" subcommand (the default) and a "version" subcommand, mirroring
// the teacher's own run/version split but through cobra rather than a
// hand-rolled name switch.
func rootCommand(commands []*Command) *cobra.Command {
	var configPath, pidFile string

	root := &cobra.Command{
		Use:           "ts",
		Short:         "Run a chronogrid process",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "start with specified configuration",
		RunE: func(*cobra.Command, []string) error {
			var runArgs []string
			if configPath != "" {
				runArgs = append(runArgs, "-config", configPath)
			}
			if pidFile != "" {
				runArgs = append(runArgs, "-pidfile", pidFile)
			}
			for _, command := range commands {
				if err := command.Run(runArgs...); err != nil {
					return err
				}
			}
			return nil
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to the configuration file")
	runCmd.Flags().StringVar(&pidFile, "pidfile", "", "path to write the process id to")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "display the version",
		Run: func(*cobra.Command, []string) {
			fmt.Println(commands[0].Version)
		},
	}

	root.AddCommand(runCmd, versionCmd)
	return root
}

// defaultToRun makes "run" the implicit subcommand, matching the teacher's
// MainUsage contract ("\"run\" is the default command").
func defaultToRun(args []string) []string {
	if len(args) == 0 {
		return []string{"run"}
	}
	switch args[0] {
	case "run", "version", "help", "-h", "--help":
		return args
	default:
		return append([]string{"run"}, args...)
	}
}

// Run dispatches the "ts-xxx" CLI: "run" (the default) opens every command
// and blocks until SIGINT/SIGTERM, then closes them in order; "version"
// just prints the version string.
func Run(args []string, commands ...*Command) {
	if len(commands) == 0 {
		return
	}

	root := rootCommand(commands)
	runArgs := defaultToRun(args)
	root.SetArgs(runArgs)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if runArgs[0] != "run" {
		return
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	for _, command := range commands {
		app := string(command.Info.App)
		logger.GetLogger().Info(app+" service received shutdown signal", zap.Any("signal", sig))
		util.MustClose(command)
		logger.GetLogger().Info(app + " shutdown successfully!")
	}
}
