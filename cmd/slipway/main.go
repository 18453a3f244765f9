// Command slipway runs a Rig document to completion and prints the
// resulting Evaluation Snapshots. Only the "run" (and "describe")
// surface of spec.md section 6 is implemented; "serve" and "package"
// are explicitly out of this module's scope.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/slipwayhq/slipway/component"
	"github.com/slipwayhq/slipway/engine"
	"github.com/slipwayhq/slipway/permission"
	"github.com/slipwayhq/slipway/rig"
	"github.com/slipwayhq/slipway/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "slipway: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "slipway",
		Short: "Evaluate Rig documents against a local component cache",
	}
	root.AddCommand(runCmd())
	root.AddCommand(describeCmd())
	return root
}

func runCmd() *cobra.Command {
	var (
		cachePath      string
		maxConcurrency int
		allowAll       bool
	)

	cmd := &cobra.Command{
		Use:   "run <rig-file>",
		Short: "Evaluate a Rig document and print its node snapshots as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadRig(args[0])
			if err != nil {
				return err
			}

			components, err := component.NewCache(&fileLoader{}, 256)
			if err != nil {
				return err
			}

			var cache store.Cache
			if cachePath != "" {
				bolt, err := store.OpenBoltCache(cachePath)
				if err != nil {
					return fmt.Errorf("opening cache: %w", err)
				}
				defer bolt.Close()
				mem, err := store.NewMemCache(1024)
				if err != nil {
					return err
				}
				cache = &store.TieredCache{Fast: mem, Durable: bolt}
			}

			cfg := engine.DefaultConfig()
			cfg.MaxConcurrency = maxConcurrency
			if allowAll {
				cfg.RootAllow = []permission.Permission{permission.All()}
			}

			e := engine.New(components, cache, cfg)
			e.Files = diskFiles{root: "files"}
			e.Env = hostEnv{}

			ctx, cancelFn := context.WithCancel(cmd.Context())
			defer cancelFn()

			snapshots, err := e.Evaluate(ctx, doc, observeToStderr)
			if err != nil {
				return err
			}
			return printSnapshots(snapshots)
		},
	}

	cmd.Flags().StringVar(&cachePath, "cache", "", "bbolt file to persist the output cache across runs")
	cmd.Flags().IntVar(&maxConcurrency, "concurrency", 1, "maximum number of nodes evaluated in parallel")
	cmd.Flags().BoolVar(&allowAll, "allow-all", false, "grant the root permission frame every capability (local development only)")
	return cmd
}

func describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <rig-file>",
		Short: "Render a Rig document's nodes and callouts as HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadRig(args[0])
			if err != nil {
				return err
			}
			fmt.Println(engine.Describe(doc))
			return nil
		},
	}
}

func loadRig(path string) (*rig.Document, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if json.Valid(bs) {
		return rig.Parse(bs)
	}
	var generic interface{}
	if err := yaml.Unmarshal(bs, &generic); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	converted, err := json.Marshal(generic)
	if err != nil {
		return nil, err
	}
	return rig.Parse(converted)
}

func observeToStderr(ev engine.Event) {
	fmt.Fprintf(os.Stderr, "%-16s %s %s\n", ev.Kind, ev.Handle, ev.Detail)
}

func printSnapshots(snapshots map[string]*store.Snapshot) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshots)
}

// fileLoader resolves components from a local directory tree laid
// out as components/<publisher>/<name>/<version>/component.json,
// relative to the process's working directory. It is intentionally minimal:
// a registry-backed Loader is an external collaborator per spec.md
// section 1.
type fileLoader struct{}

func (fileLoader) Load(ctx context.Context, ref component.Reference) (*component.Definition, error) {
	path := fmt.Sprintf("components/%s/%s/%s/component.json", ref.Publisher, ref.Name, ref.Version)
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, &component.NotFound{Reference: ref.String()}
	}

	var wire struct {
		Description         string                   `json:"description"`
		InputSchema         json.RawMessage          `json:"input_schema"`
		OutputSchema        json.RawMessage          `json:"output_schema"`
		Runner              component.RunnerKind     `json:"runner"`
		RunnerVersionTag    string                   `json:"runner_version_tag"`
		JS                  string                   `json:"js"`
		Wasm                string                   `json:"wasm"`
		Fragment            json.RawMessage          `json:"fragment"`
		RequiredPermissions []permission.Permission  `json:"required_permissions"`
		Callouts            map[string]wireCallout   `json:"callouts"`
	}
	if err := json.Unmarshal(bs, &wire); err != nil {
		return nil, fmt.Errorf("component %s: %w", ref.String(), err)
	}

	def := &component.Definition{
		Description:         wire.Description,
		InputSchemaJSON:     wire.InputSchema,
		OutputSchemaJSON:    wire.OutputSchema,
		RunnerKind:          wire.Runner,
		RunnerVersionTag:    wire.RunnerVersionTag,
		FragmentRig:         wire.Fragment,
		RequiredPermissions: wire.RequiredPermissions,
	}

	if wire.JS != "" {
		src, err := os.ReadFile(fmt.Sprintf("components/%s/%s/%s/%s", ref.Publisher, ref.Name, ref.Version, wire.JS))
		if err != nil {
			return nil, err
		}
		def.JSSource = string(src)
	}
	if wire.Wasm != "" {
		bin, err := os.ReadFile(fmt.Sprintf("components/%s/%s/%s/%s", ref.Publisher, ref.Name, ref.Version, wire.Wasm))
		if err != nil {
			return nil, err
		}
		def.WasmModule = bin
	}

	if len(wire.Callouts) > 0 {
		def.Callouts = make(map[string]component.CalloutDecl, len(wire.Callouts))
		for handle, wc := range wire.Callouts {
			target, err := component.ParseReference(wc.Component)
			if err != nil {
				return nil, fmt.Errorf("component %s: callout %q: %w", ref.String(), handle, err)
			}
			def.Callouts[handle] = component.CalloutDecl{Reference: target, Allow: wc.Allow, Deny: wc.Deny}
		}
	}

	return def, nil
}

type wireCallout struct {
	Component string                  `json:"component"`
	Allow     []permission.Permission `json:"allow"`
	Deny      []permission.Permission `json:"deny"`
}

// hostEnv exposes the process's own environment to env() host calls.
type hostEnv struct{}

func (hostEnv) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// diskFiles serves load_text/load_bin calls from a directory per
// file handle, rooted under root to keep guests from escaping it via
// "..".
type diskFiles struct {
	root string
}

func (d diskFiles) Load(handle, path string) ([]byte, error) {
	full := filepath.Join(d.root, handle, path)
	if !filepath.IsLocal(filepath.Join(handle, path)) {
		return nil, fmt.Errorf("files: path %q escapes handle %q", path, handle)
	}
	return os.ReadFile(full)
}
