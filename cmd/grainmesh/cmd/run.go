// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tochemey/grainmesh/cluster"
	"github.com/tochemey/grainmesh/discovery"
	"github.com/tochemey/grainmesh/discovery/consul"
	"github.com/tochemey/grainmesh/discovery/kubernetes"
	"github.com/tochemey/grainmesh/log"
)

// envPrefix prefixes every environment variable read by the run command
const envPrefix = "GRAINMESH_"

// runOptions defines the run command settings.
// They are read from the environment and overridden by the flags set on the command line.
type runOptions struct {
	ClusterName     string        `env:"CLUSTER_NAME" envDefault:"grainmesh"`
	Backend         string        `env:"DISCOVERY" envDefault:"consul"`
	Host            string        `env:"HOST" envDefault:"127.0.0.1"`
	Port            int           `env:"PORT" envDefault:"50051"`
	Kinds           []string      `env:"KINDS"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ConsulAddress   string        `env:"CONSUL_ADDRESS"`
	Namespace       string        `env:"NAMESPACE"`
	PodName         string        `env:"POD_NAME"`
	CoalesceWindow  time.Duration `env:"COALESCE_WINDOW"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// flagOverrides copies a flag value set on the command line over the environment one
var flagOverrides = map[string]func(dst, src *runOptions){
	"cluster":          func(dst, src *runOptions) { dst.ClusterName = src.ClusterName },
	"discovery":        func(dst, src *runOptions) { dst.Backend = src.Backend },
	"host":             func(dst, src *runOptions) { dst.Host = src.Host },
	"port":             func(dst, src *runOptions) { dst.Port = src.Port },
	"kinds":            func(dst, src *runOptions) { dst.Kinds = src.Kinds },
	"log-level":        func(dst, src *runOptions) { dst.LogLevel = src.LogLevel },
	"consul-address":   func(dst, src *runOptions) { dst.ConsulAddress = src.ConsulAddress },
	"namespace":        func(dst, src *runOptions) { dst.Namespace = src.Namespace },
	"pod-name":         func(dst, src *runOptions) { dst.PodName = src.PodName },
	"coalesce-window":  func(dst, src *runOptions) { dst.CoalesceWindow = src.CoalesceWindow },
	"shutdown-timeout": func(dst, src *runOptions) { dst.ShutdownTimeout = src.ShutdownTimeout },
}

var (
	// flagOpts receives the command line flags
	flagOpts = new(runOptions)
	// runOpts holds the settings the member runs with
	runOpts = new(runOptions)
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a cluster member and keep it running until interrupted",
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := loadRunOptions(cmd.Flags(), flagOpts)
		if err != nil {
			return err
		}
		runOpts = opts
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := log.NewZap(log.ParseLevel(runOpts.LogLevel), os.Stdout)

		member, err := cluster.NewFromConfig(runOpts.config(logger))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := member.StartMember(ctx); err != nil {
			_ = member.Shutdown(context.Background())
			return err
		}

		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), runOpts.ShutdownTimeout)
		defer cancel()
		return member.Shutdown(shutdownCtx)
	},
}

// loadRunOptions reads the settings from the environment then applies
// the flags changed on the command line
func loadRunOptions(flags *pflag.FlagSet, fromFlags *runOptions) (*runOptions, error) {
	opts := new(runOptions)
	if err := env.ParseWithOptions(opts, env.Options{Prefix: envPrefix, UseFieldNameByDefault: false}); err != nil {
		return nil, fmt.Errorf("failed to read the run settings from the environment: %w", err)
	}

	flags.Visit(func(flag *pflag.Flag) {
		if override, ok := flagOverrides[flag.Name]; ok {
			override(opts, fromFlags)
		}
	})
	return opts, nil
}

// bindRunFlags registers the run flags. The defaults only feed the help text,
// an unset flag leaves the environment value in place.
func bindRunFlags(flags *pflag.FlagSet, opts *runOptions) {
	flags.StringVar(&opts.ClusterName, "cluster", "grainmesh", "logical cluster name")
	flags.StringVar(&opts.Backend, "discovery", consul.ProviderName, "discovery backend: consul or kubernetes")
	flags.StringVar(&opts.Host, "host", "127.0.0.1", "advertised host")
	flags.IntVar(&opts.Port, "port", 50051, "advertised port")
	flags.StringSliceVar(&opts.Kinds, "kinds", nil, "virtual actor kinds hosted by this member")
	flags.StringVar(&opts.LogLevel, "log-level", "info", "log level")
	flags.StringVar(&opts.ConsulAddress, "consul-address", "", "consul agent address")
	flags.StringVar(&opts.Namespace, "namespace", "", "kubernetes namespace of this pod")
	flags.StringVar(&opts.PodName, "pod-name", "", "kubernetes name of this pod")
	flags.DurationVar(&opts.CoalesceWindow, "coalesce-window", 0, "window presence events are folded in")
	flags.DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", cluster.DefaultShutdownTimeout, "graceful shutdown bound")
}

// config builds the cluster configuration of the selected backend
func (x *runOptions) config(logger log.Logger) *cluster.Config {
	settings := discovery.NewConfig()
	switch strings.ToLower(x.Backend) {
	case consul.ProviderName:
		if x.ConsulAddress != "" {
			settings[consul.AddressKey] = x.ConsulAddress
		}
	case kubernetes.ProviderName:
		if x.Namespace != "" {
			settings[kubernetes.NamespaceKey] = x.Namespace
		}
		if x.PodName != "" {
			settings[kubernetes.PodNameKey] = x.PodName
		}
	}

	return &cluster.Config{
		ClusterName:      x.ClusterName,
		DiscoveryBackend: x.Backend,
		BackendConfig:    settings,
		Host:             x.Host,
		Port:             x.Port,
		Kinds:            x.Kinds,
		CoalesceWindow:   x.CoalesceWindow,
		ShutdownTimeout:  x.ShutdownTimeout,
		Logger:           logger,
	}
}

func init() {
	bindRunFlags(runCmd.Flags(), flagOpts)
	rootCmd.AddCommand(runCmd)
}
