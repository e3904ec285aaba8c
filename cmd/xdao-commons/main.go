// xdao-commons drives a local workspace: it loads the named snapshot from
// the configured store, applies one operation as the acting participant and
// saves the result.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"xdao.co/commons/config"
	"xdao.co/commons/keys"
	"xdao.co/commons/model"
	"xdao.co/commons/peer"
	"xdao.co/commons/replica"
	"xdao.co/commons/replica/memory"
	"xdao.co/commons/snapshot"
	"xdao.co/commons/storage"
	"xdao.co/commons/storage/registry"
	"xdao.co/commons/workspace"

	_ "xdao.co/commons/storage/grpcstore"
	_ "xdao.co/commons/storage/localfs"
	_ "xdao.co/commons/storage/redisstore"
)

const (
	envConfig     = config.EnvPrefix + "CONFIG"
	envActor      = config.EnvPrefix + "ACTOR"
	envPassphrase = config.EnvPrefix + "PASSPHRASE"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "init":
		return cmdInit(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "identity":
		return cmdIdentity(args[1:], out, errOut)
	case "context":
		return cmdContext(args[1:], out, errOut)
	case "module":
		return cmdModule(args[1:], out, errOut)
	case "trust":
		return cmdTrust(args[1:], out, errOut)
	case "assumption":
		return cmdAssumption(args[1:], out, errOut)
	case "tag":
		return cmdTag(args[1:], out, errOut)
	case "vote":
		return cmdVote(args[1:], out, errOut)
	case "listing":
		return cmdListing(args[1:], out, errOut)
	case "location":
		return cmdLocation(args[1:], out, errOut)
	case "reconcile":
		return cmdReconcile(args[1:], out, errOut)
	case "merge":
		return cmdMerge(args[1:], out, errOut)
	case "show":
		return cmdShow(args[1:], out, errOut)
	case "fingerprint":
		return cmdFingerprint(args[1:], out, errOut)
	case "bundle":
		return cmdBundle(args[1:], out, errOut)
	case "backends":
		for _, b := range registry.List(registry.UsageCLI) {
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "xdao-commons: local-first collaborative workspace tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  xdao-commons init --name <title> [--display-name <n>] [--avatar <url>] [--force]")
	fmt.Fprintln(w, "  xdao-commons key init [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  xdao-commons key derive --role <role> [--force]")
	fmt.Fprintln(w, "  xdao-commons key export [--role <role>]")
	fmt.Fprintln(w, "  xdao-commons key list")
	fmt.Fprintln(w, "  xdao-commons identity set-profile [--display-name <n>] [--avatar <url>]")
	fmt.Fprintln(w, "  xdao-commons identity publish-key")
	fmt.Fprintln(w, "  xdao-commons context set --name <title> [--avatar <url>]")
	fmt.Fprintln(w, "  xdao-commons module enable|disable <discussion|marketplace|map>")
	fmt.Fprintln(w, "  xdao-commons trust set <trustee> --level none|partial|full|verified [--method <m>]")
	fmt.Fprintln(w, "  xdao-commons trust revoke <trustee>")
	fmt.Fprintln(w, "  xdao-commons trust show [<participant>]")
	fmt.Fprintln(w, "  xdao-commons assumption add <sentence> [--tag <t> ...]")
	fmt.Fprintln(w, "  xdao-commons assumption edit <id> <sentence> [--tag <t> ... | --clear-tags]")
	fmt.Fprintln(w, "  xdao-commons assumption delete <id>")
	fmt.Fprintln(w, "  xdao-commons assumption list [--hide <id> ...]")
	fmt.Fprintln(w, "  xdao-commons assumption show <id>")
	fmt.Fprintln(w, "  xdao-commons tag ensure <name>")
	fmt.Fprintln(w, "  xdao-commons tag rename <id> <name>")
	fmt.Fprintln(w, "  xdao-commons vote <assumption-id> green|yellow|red")
	fmt.Fprintln(w, "  xdao-commons vote --retract <assumption-id>")
	fmt.Fprintln(w, "  xdao-commons listing add --type offer|need|service --title <t> --description <d> --category <c> [--location <l>]")
	fmt.Fprintln(w, "  xdao-commons listing status <id> fulfilled|cancelled")
	fmt.Fprintln(w, "  xdao-commons listing react <id>")
	fmt.Fprintln(w, "  xdao-commons listing delete <id>")
	fmt.Fprintln(w, "  xdao-commons listing list [--type <t>] [--status <s>] [--category <c>] [--hide <id> ...]")
	fmt.Fprintln(w, "  xdao-commons location set --lat <lat> --lng <lng> [--label <l>]")
	fmt.Fprintln(w, "  xdao-commons location clear")
	fmt.Fprintln(w, "  xdao-commons reconcile")
	fmt.Fprintln(w, "  xdao-commons merge <other-dir> [--cid <snapshot-cid>]")
	fmt.Fprintln(w, "  xdao-commons show [--hide <id> ...]")
	fmt.Fprintln(w, "  xdao-commons fingerprint")
	fmt.Fprintln(w, "  xdao-commons bundle export <file> [--head <name> ...]")
	fmt.Fprintln(w, "  xdao-commons bundle import <file> [--set-heads]")
	fmt.Fprintln(w, "  xdao-commons backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common flags:")
	fmt.Fprintln(w, "  -c, --config <file>     configuration file (default $"+envConfig+")")
	fmt.Fprintln(w, "  -w, --workspace <name>  workspace head name (default \"main\")")
	fmt.Fprintln(w, "      --as <id>           acting participant (default $"+envActor+")")
	fmt.Fprintln(w, "      --role <role>       sign with a derived role key")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - writes are signed when a key is stored for the acting participant")
	fmt.Fprintln(w, "  - encrypted keys are opened with $"+envPassphrase)
	fmt.Fprintln(w, "  - results are printed as JSON on stdout")
}

// globals are the flags every subcommand accepts.
type globals struct {
	configPath string
	workspace  string
	actor      string
	role       string
}

func newFlagSet(name string, errOut io.Writer, g *globals) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVarP(&g.configPath, "config", "c", os.Getenv(envConfig), "configuration file")
	fs.StringVarP(&g.workspace, "workspace", "w", "main", "workspace head name")
	fs.StringVar(&g.actor, "as", os.Getenv(envActor), "acting participant id")
	fs.StringVar(&g.role, "role", "", "role key to sign with")
	return fs
}

// parse parses args and checks the positional argument count.
func parse(fs *pflag.FlagSet, errOut io.Writer, args []string, nargs int, usage string) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if nargs >= 0 && fs.NArg() != nargs {
		fmt.Fprintln(errOut, "usage: xdao-commons "+usage)
		return false
	}
	return true
}

// app is a loaded configuration with its open store.
type app struct {
	g     globals
	cfg   *config.Config
	log   *slog.Logger
	env   *workspace.Env
	keys  *keys.KeyStore
	alg   keys.Algorithm
	store storage.Store
	snaps *snapshot.Store
}

// newApp loads the configuration without opening the store.
func newApp(g globals, errOut io.Writer) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	mode, err := cfg.ComplianceMode()
	if err != nil {
		return nil, err
	}
	alg, err := cfg.Algorithm()
	if err != nil {
		return nil, err
	}
	log := cfg.NewLogger(errOut)
	env := workspace.DefaultEnv()
	env.Logger = log
	env.Mode = mode
	return &app{
		g:    g,
		cfg:  cfg,
		log:  log,
		env:  env,
		keys: &keys.KeyStore{Directory: cfg.KeyDir, Passphrase: os.Getenv(envPassphrase)},
		alg:  alg,
	}, nil
}

// openApp loads the configuration and opens the configured store with its
// mirrors.
func openApp(ctx context.Context, g globals, errOut io.Writer) (*app, error) {
	a, err := newApp(g, errOut)
	if err != nil {
		return nil, err
	}
	primary, mirrors := a.cfg.StoreTargets()
	store, err := registry.OpenMirrored(ctx, registry.UsageCLI, primary, mirrors)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.snaps = &snapshot.Store{Backend: store, Logger: a.log}
	return a, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing store", "error", err)
	}
}

func (a *app) requireActor() error {
	if a.g.actor == "" {
		return workspace.Invalid("WS-CLI-001", "no acting participant: pass --as or set $"+envActor)
	}
	return nil
}

// signer returns the acting participant's signer, or nil when no key is
// stored for them.
func (a *app) signer() (keys.Signer, error) {
	if a.g.actor == "" {
		return nil, nil
	}
	s, err := a.keys.LoadSignerFor(a.g.actor, a.g.role, a.alg)
	if errors.Is(err, keys.ErrNoKey) {
		a.log.Warn("no key stored, writing unsigned records", "identity", a.g.actor, "role", a.g.role)
		return nil, nil
	}
	return s, err
}

// load opens the workspace snapshot in a fresh in-process engine.
func (a *app) load(ctx context.Context) (replica.Handle, error) {
	engine := memory.New(memory.WithLogger(a.log))
	h, id, err := peer.Load(ctx, engine, a.snaps, a.g.workspace)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("workspace %q not found (run init first): %w", a.g.workspace, err)
		}
		return nil, err
	}
	a.log.Debug("workspace loaded", "workspace", a.g.workspace, "cid", id.String())
	return h, nil
}

func (a *app) document(ctx context.Context) (*workspace.Document, error) {
	h, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	return h.Snapshot()
}

func (a *app) save(ctx context.Context, h replica.Handle) error {
	id, err := peer.Save(ctx, h, a.snaps, a.g.workspace)
	if err != nil {
		return err
	}
	a.log.Info("workspace saved", "workspace", a.g.workspace, "cid", id.String())
	return nil
}

// session opens the stored workspace for the acting participant.
func (a *app) session(ctx context.Context) (*peer.Session, error) {
	if err := a.requireActor(); err != nil {
		return nil, err
	}
	h, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	signer, err := a.signer()
	if err != nil {
		return nil, err
	}
	return peer.New(a.env, h, a.g.actor, signer)
}

// mutate runs fn as the acting participant against the stored workspace,
// saves the result and prints what fn returned.
func mutate(g globals, out, errOut io.Writer, fn func(s *peer.Session) (any, error)) int {
	ctx := context.Background()
	a, err := openApp(ctx, g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	defer a.Close()
	s, err := a.session(ctx)
	if err != nil {
		return fail(errOut, err)
	}
	result, err := fn(s)
	if err != nil {
		return fail(errOut, err)
	}
	if err := a.save(ctx, s.Handle()); err != nil {
		return fail(errOut, err)
	}
	return emit(out, errOut, result)
}

// inspect runs a read-only fn over the stored workspace and prints its
// result.
func inspect(g globals, out, errOut io.Writer, fn func(a *app, doc *workspace.Document) (any, error)) int {
	ctx := context.Background()
	a, err := openApp(ctx, g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	defer a.Close()
	doc, err := a.document(ctx)
	if err != nil {
		return fail(errOut, err)
	}
	result, err := fn(a, doc)
	if err != nil {
		return fail(errOut, err)
	}
	return emit(out, errOut, result)
}

func emit(out, errOut io.Writer, v any) int {
	if v == nil {
		return 0
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fail(errOut, err)
	}
	return 0
}

func fail(errOut io.Writer, err error) int {
	fmt.Fprintf(errOut, "error: %v\n", model.FromError(err))
	return 1
}
