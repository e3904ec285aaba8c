package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/commons/aggregate"
	"xdao.co/commons/cidutil"
	"xdao.co/commons/discussion"
	"xdao.co/commons/identity"
	"xdao.co/commons/marketplace"
	"xdao.co/commons/model"
	"xdao.co/commons/peer"
	"xdao.co/commons/snapshot"
	"xdao.co/commons/storage"
	"xdao.co/commons/storage/bundle"
	"xdao.co/commons/storage/localfs"
	"xdao.co/commons/workspace"
)

func notFound(what, id string) error {
	return workspace.NewError(workspace.KindNotFound, "WS-CLI-003", fmt.Sprintf("%s %q not found", what, id))
}

func unknownSub(errOut io.Writer, group, sub string, subs ...string) int {
	fmt.Fprintf(errOut, "unknown %s subcommand: %s\n", group, sub)
	fmt.Fprintf(errOut, "subcommands: %s\n", strings.Join(subs, ", "))
	return 2
}

func cmdInit(args []string, out, errOut io.Writer) int {
	var g globals
	fs := newFlagSet("init", errOut, &g)
	var name, displayName, avatar string
	var force bool
	fs.StringVar(&name, "name", "", "workspace title")
	fs.StringVar(&displayName, "display-name", "", "your display name")
	fs.StringVar(&avatar, "avatar", "", "workspace avatar URL")
	fs.BoolVar(&force, "force", false, "replace an existing workspace head")
	if !parse(fs, errOut, args, 0, "init --name <title>") {
		return 2
	}
	if strings.TrimSpace(name) == "" {
		fmt.Fprintln(errOut, "usage: xdao-commons init --name <title>")
		return 2
	}

	ctx := context.Background()
	a, err := openApp(ctx, g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	defer a.Close()
	if err := a.requireActor(); err != nil {
		return fail(errOut, err)
	}
	if !force {
		_, err := a.store.Head(ctx, g.workspace)
		if err == nil {
			return fail(errOut, workspace.Invalid("WS-CLI-002", fmt.Sprintf("workspace %q already exists (use --force to replace it)", g.workspace)))
		}
		if !storage.IsNotFound(err) {
			return fail(errOut, err)
		}
	}
	signer, err := a.signer()
	if err != nil {
		return fail(errOut, err)
	}
	creator := workspace.Identity{ID: g.actor, DisplayName: workspace.Optional(displayName)}
	if signer != nil {
		pub := signer.PublicKey()
		creator.PublicKey = &pub
	}
	doc, err := workspace.CreateEmpty(a.env, creator, name, workspace.Optional(avatar))
	if err != nil {
		return fail(errOut, err)
	}
	id, err := a.snaps.Save(ctx, g.workspace, doc)
	if err != nil {
		return fail(errOut, err)
	}
	return emit(out, errOut, map[string]string{"workspace": g.workspace, "cid": id.String()})
}

func cmdIdentity(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-commons identity <set-profile|publish-key> ...")
		return 2
	}
	var g globals
	switch args[0] {
	case "set-profile":
		fs := newFlagSet("identity set-profile", errOut, &g)
		var displayName, avatar string
		fs.StringVar(&displayName, "display-name", "", "display name (empty clears it)")
		fs.StringVar(&avatar, "avatar", "", "avatar URL (empty clears it)")
		if !parse(fs, errOut, args[1:], 0, "identity set-profile [--display-name <n>] [--avatar <url>]") {
			return 2
		}
		var u identity.ProfileUpdate
		if fs.Changed("display-name") {
			u.DisplayName = &displayName
		}
		if fs.Changed("avatar") {
			u.AvatarURL = &avatar
		}
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			if err := s.SetProfile(u); err != nil {
				return nil, err
			}
			doc, err := s.Document()
			if err != nil {
				return nil, err
			}
			ident, _ := identity.Lookup(doc, s.Actor())
			return ident, nil
		})
	case "publish-key":
		fs := newFlagSet("identity publish-key", errOut, &g)
		if !parse(fs, errOut, args[1:], 0, "identity publish-key") {
			return 2
		}
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			stored, err := s.PublishKey()
			return map[string]bool{"stored": stored}, err
		})
	default:
		return unknownSub(errOut, "identity", args[0], "set-profile", "publish-key")
	}
}

func cmdContext(args []string, out, errOut io.Writer) int {
	if len(args) == 0 || args[0] != "set" {
		fmt.Fprintln(errOut, "usage: xdao-commons context set --name <title> [--avatar <url>]")
		return 2
	}
	var g globals
	fs := newFlagSet("context set", errOut, &g)
	var name, avatar string
	fs.StringVar(&name, "name", "", "workspace title")
	fs.StringVar(&avatar, "avatar", "", "workspace avatar URL (empty clears it)")
	if !parse(fs, errOut, args[1:], 0, "context set --name <title> [--avatar <url>]") {
		return 2
	}
	var avatarPtr *string
	if fs.Changed("avatar") {
		avatarPtr = &avatar
	}
	return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
		if err := s.SetContext(name, avatarPtr); err != nil {
			return nil, err
		}
		doc, err := s.Document()
		if err != nil {
			return nil, err
		}
		return doc.Context, nil
	})
}

func cmdModule(args []string, out, errOut io.Writer) int {
	if len(args) == 0 || (args[0] != "enable" && args[0] != "disable") {
		fmt.Fprintln(errOut, "usage: xdao-commons module enable|disable <module>")
		return 2
	}
	enabled := args[0] == "enable"
	var g globals
	fs := newFlagSet("module "+args[0], errOut, &g)
	if !parse(fs, errOut, args[1:], 1, "module "+args[0]+" <module>") {
		return 2
	}
	id := workspace.ModuleID(fs.Arg(0))
	return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
		err := s.SetModuleEnabled(id, enabled)
		return map[string]any{"module": id, "enabled": enabled}, err
	})
}

func cmdTrust(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-commons trust <set|revoke|show> ...")
		return 2
	}
	var g globals
	switch args[0] {
	case "set":
		fs := newFlagSet("trust set", errOut, &g)
		var level, method string
		fs.StringVar(&level, "level", "", "none, partial, full or verified")
		fs.StringVar(&method, "method", "", "how the trustee was verified")
		if !parse(fs, errOut, args[1:], 1, "trust set <trustee> --level <level> [--method <m>]") {
			return 2
		}
		var methodPtr *string
		if fs.Changed("method") {
			methodPtr = &method
		}
		trustee := fs.Arg(0)
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			return s.SetTrust(trustee, workspace.TrustLevel(level), methodPtr)
		})
	case "revoke":
		fs := newFlagSet("trust revoke", errOut, &g)
		if !parse(fs, errOut, args[1:], 1, "trust revoke <trustee>") {
			return 2
		}
		trustee := fs.Arg(0)
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			revoked, err := s.RevokeTrust(trustee)
			return map[string]bool{"revoked": revoked}, err
		})
	case "show":
		fs := newFlagSet("trust show", errOut, &g)
		var hide []string
		fs.StringArrayVar(&hide, "hide", nil, "participant whose attestations are left out")
		if !parse(fs, errOut, args[1:], -1, "trust show [<participant>]") {
			return 2
		}
		if fs.NArg() > 1 {
			fmt.Fprintln(errOut, "usage: xdao-commons trust show [<participant>]")
			return 2
		}
		who := fs.Arg(0)
		return inspect(g, out, errOut, func(_ *app, doc *workspace.Document) (any, error) {
			all := model.Trust(doc, aggregate.HideAll(hide...))
			if who == "" {
				return all, nil
			}
			matched := []model.TrustView{}
			for _, t := range all {
				if t.Attester == who || t.Trustee == who {
					matched = append(matched, t)
				}
			}
			return matched, nil
		})
	default:
		return unknownSub(errOut, "trust", args[0], "set", "revoke", "show")
	}
}

func cmdAssumption(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-commons assumption <add|edit|delete|list|show> ...")
		return 2
	}
	var g globals
	switch args[0] {
	case "add":
		fs := newFlagSet("assumption add", errOut, &g)
		var tags []string
		fs.StringArrayVarP(&tags, "tag", "t", nil, "tag name (repeatable)")
		if !parse(fs, errOut, args[1:], 1, "assumption add <sentence> [--tag <t> ...]") {
			return 2
		}
		sentence := fs.Arg(0)
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			return s.AddAssumption(sentence, tags)
		})
	case "edit":
		fs := newFlagSet("assumption edit", errOut, &g)
		var tags []string
		var clearTags bool
		fs.StringArrayVarP(&tags, "tag", "t", nil, "tag name (repeatable, replaces the current tags)")
		fs.BoolVar(&clearTags, "clear-tags", false, "remove every tag")
		if !parse(fs, errOut, args[1:], 2, "assumption edit <id> <sentence> [--tag <t> ... | --clear-tags]") {
			return 2
		}
		id, sentence := fs.Arg(0), fs.Arg(1)
		keepTags := !fs.Changed("tag") && !clearTags
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			if keepTags {
				doc, err := s.Document()
				if err != nil {
					return nil, err
				}
				for _, t := range discussion.TagsFor(doc, id) {
					tags = append(tags, t.Name)
				}
			}
			a, found, err := s.EditAssumption(id, sentence, tags)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, notFound("assumption", id)
			}
			return a, nil
		})
	case "delete":
		fs := newFlagSet("assumption delete", errOut, &g)
		if !parse(fs, errOut, args[1:], 1, "assumption delete <id>") {
			return 2
		}
		id := fs.Arg(0)
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			deleted, err := s.DeleteAssumption(id)
			return map[string]bool{"deleted": deleted}, err
		})
	case "list":
		fs := newFlagSet("assumption list", errOut, &g)
		var hide []string
		fs.StringArrayVar(&hide, "hide", nil, "participant whose contributions are left out")
		if !parse(fs, errOut, args[1:], 0, "assumption list [--hide <id> ...]") {
			return 2
		}
		return inspect(g, out, errOut, func(_ *app, doc *workspace.Document) (any, error) {
			return model.Assumptions(doc, model.ProjectOptions{Viewer: g.actor, Hidden: aggregate.HideAll(hide...)}), nil
		})
	case "show":
		fs := newFlagSet("assumption show", errOut, &g)
		if !parse(fs, errOut, args[1:], 1, "assumption show <id>") {
			return 2
		}
		id := fs.Arg(0)
		return inspect(g, out, errOut, func(_ *app, doc *workspace.Document) (any, error) {
			detail := model.Assumption(doc, id, model.ProjectOptions{Viewer: g.actor})
			if detail == nil {
				return nil, notFound("assumption", id)
			}
			return detail, nil
		})
	default:
		return unknownSub(errOut, "assumption", args[0], "add", "edit", "delete", "list", "show")
	}
}

func cmdTag(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-commons tag <ensure|rename> ...")
		return 2
	}
	var g globals
	switch args[0] {
	case "ensure":
		fs := newFlagSet("tag ensure", errOut, &g)
		if !parse(fs, errOut, args[1:], 1, "tag ensure <name>") {
			return 2
		}
		name := fs.Arg(0)
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			return s.EnsureTag(name)
		})
	case "rename":
		fs := newFlagSet("tag rename", errOut, &g)
		if !parse(fs, errOut, args[1:], 2, "tag rename <id> <name>") {
			return 2
		}
		id, name := fs.Arg(0), fs.Arg(1)
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			t, found, err := s.RenameTag(id, name)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, notFound("tag", id)
			}
			return t, nil
		})
	default:
		return unknownSub(errOut, "tag", args[0], "ensure", "rename")
	}
}

func cmdVote(args []string, out, errOut io.Writer) int {
	var g globals
	fs := newFlagSet("vote", errOut, &g)
	var retract bool
	fs.BoolVar(&retract, "retract", false, "remove your vote")
	if !parse(fs, errOut, args, -1, "") {
		return 2
	}
	if retract {
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: xdao-commons vote --retract <assumption-id>")
			return 2
		}
		id := fs.Arg(0)
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			retracted, err := s.RetractVote(id)
			return map[string]bool{"retracted": retracted}, err
		})
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(errOut, "usage: xdao-commons vote <assumption-id> green|yellow|red")
		return 2
	}
	id, value := fs.Arg(0), workspace.VoteValue(fs.Arg(1))
	return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
		v, found, err := s.Vote(id, value)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, notFound("assumption", id)
		}
		return v, nil
	})
}

func cmdListing(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-commons listing <add|status|react|delete|list> ...")
		return 2
	}
	var g globals
	switch args[0] {
	case "add":
		fs := newFlagSet("listing add", errOut, &g)
		var typ, title, description, category, location string
		fs.StringVar(&typ, "type", "", "offer, need or service")
		fs.StringVar(&title, "title", "", "listing title")
		fs.StringVar(&description, "description", "", "listing description")
		fs.StringVar(&category, "category", "", "category id")
		fs.StringVar(&location, "location", "", "free-form location")
		if !parse(fs, errOut, args[1:], 0, "listing add --type <t> --title <t> --description <d> --category <c> [--location <l>]") {
			return 2
		}
		draft := marketplace.Draft{
			Type:        workspace.ListingType(typ),
			Title:       title,
			Description: description,
			CategoryID:  category,
			Location:    workspace.Optional(location),
		}
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			return s.AddListing(draft)
		})
	case "status":
		fs := newFlagSet("listing status", errOut, &g)
		if !parse(fs, errOut, args[1:], 2, "listing status <id> fulfilled|cancelled") {
			return 2
		}
		id, status := fs.Arg(0), workspace.ListingStatus(fs.Arg(1))
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			l, found, err := s.SetListingStatus(id, status)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, notFound("listing", id)
			}
			return l, nil
		})
	case "react":
		fs := newFlagSet("listing react", errOut, &g)
		if !parse(fs, errOut, args[1:], 1, "listing react <id>") {
			return 2
		}
		id := fs.Arg(0)
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			reacted, err := s.ToggleReaction(id)
			return map[string]bool{"reacted": reacted}, err
		})
	case "delete":
		fs := newFlagSet("listing delete", errOut, &g)
		if !parse(fs, errOut, args[1:], 1, "listing delete <id>") {
			return 2
		}
		id := fs.Arg(0)
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			deleted, err := s.DeleteListing(id)
			return map[string]bool{"deleted": deleted}, err
		})
	case "list":
		fs := newFlagSet("listing list", errOut, &g)
		var typ, status, category string
		var hide []string
		fs.StringVar(&typ, "type", "", "only this listing type")
		fs.StringVar(&status, "status", "", "only this status")
		fs.StringVar(&category, "category", "", "only this category")
		fs.StringArrayVar(&hide, "hide", nil, "participant whose contributions are left out")
		if !parse(fs, errOut, args[1:], 0, "listing list [--type <t>] [--status <s>] [--category <c>]") {
			return 2
		}
		opts := model.ProjectOptions{
			Viewer: g.actor,
			Hidden: aggregate.HideAll(hide...),
			Listings: aggregate.ListingFilter{
				Type:       workspace.ListingType(typ),
				Status:     workspace.ListingStatus(status),
				CategoryID: category,
			},
		}
		return inspect(g, out, errOut, func(_ *app, doc *workspace.Document) (any, error) {
			return model.Listings(doc, opts), nil
		})
	default:
		return unknownSub(errOut, "listing", args[0], "add", "status", "react", "delete", "list")
	}
}

func cmdLocation(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-commons location <set|clear> ...")
		return 2
	}
	var g globals
	switch args[0] {
	case "set":
		fs := newFlagSet("location set", errOut, &g)
		var lat, lng float64
		var label string
		fs.Float64Var(&lat, "lat", 0, "latitude in degrees")
		fs.Float64Var(&lng, "lng", 0, "longitude in degrees")
		fs.StringVar(&label, "label", "", "label shown on the map")
		if !parse(fs, errOut, args[1:], 0, "location set --lat <lat> --lng <lng> [--label <l>]") {
			return 2
		}
		if !fs.Changed("lat") || !fs.Changed("lng") {
			fmt.Fprintln(errOut, "usage: xdao-commons location set --lat <lat> --lng <lng> [--label <l>]")
			return 2
		}
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			return s.SetLocation(lat, lng, workspace.Optional(label))
		})
	case "clear":
		fs := newFlagSet("location clear", errOut, &g)
		if !parse(fs, errOut, args[1:], 0, "location clear") {
			return 2
		}
		return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
			removed, err := s.ClearLocation()
			return map[string]bool{"removed": removed}, err
		})
	default:
		return unknownSub(errOut, "location", args[0], "set", "clear")
	}
}

func cmdReconcile(args []string, out, errOut io.Writer) int {
	var g globals
	fs := newFlagSet("reconcile", errOut, &g)
	if !parse(fs, errOut, args, 0, "reconcile") {
		return 2
	}
	return mutate(g, out, errOut, func(s *peer.Session) (any, error) {
		return s.Reconcile()
	})
}

// cmdMerge folds the same-named workspace from another localfs directory
// into this one. Snapshot blocks are read through both stores, so --cid may
// name a snapshot held by either side.
func cmdMerge(args []string, out, errOut io.Writer) int {
	var g globals
	fs := newFlagSet("merge", errOut, &g)
	var cidStr string
	fs.StringVar(&cidStr, "cid", "", "merge this snapshot instead of the other side's head")
	if !parse(fs, errOut, args, 1, "merge <other-dir> [--cid <snapshot-cid>]") {
		return 2
	}
	dir := fs.Arg(0)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		fmt.Fprintf(errOut, "merge: %s is not a workspace directory\n", dir)
		return 1
	}

	ctx := context.Background()
	a, err := openApp(ctx, g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	defer a.Close()
	other, err := localfs.New(dir)
	if err != nil {
		return fail(errOut, err)
	}
	defer other.Close()

	var id cid.Cid
	if cidStr != "" {
		id, err = cidutil.Parse(cidStr)
	} else {
		id, err = other.Head(ctx, g.workspace)
	}
	if err != nil {
		return fail(errOut, err)
	}
	b, err := storage.MultiCAS{Adapters: []storage.CAS{a.store, other}}.Get(ctx, id)
	if err != nil {
		return fail(errOut, err)
	}
	remote, err := snapshot.Decode(b)
	if err != nil {
		return fail(errOut, err)
	}

	s, err := a.session(ctx)
	if err != nil {
		return fail(errOut, err)
	}
	rep, err := s.Merge(remote)
	if err != nil {
		return fail(errOut, err)
	}
	if err := a.save(ctx, s.Handle()); err != nil {
		return fail(errOut, err)
	}
	return emit(out, errOut, map[string]any{"merged": id.String(), "reconciled": rep})
}

func cmdShow(args []string, out, errOut io.Writer) int {
	var g globals
	fs := newFlagSet("show", errOut, &g)
	var hide []string
	fs.StringArrayVar(&hide, "hide", nil, "participant whose contributions are left out")
	if !parse(fs, errOut, args, 0, "show [--hide <id> ...]") {
		return 2
	}
	return inspect(g, out, errOut, func(_ *app, doc *workspace.Document) (any, error) {
		return model.Project(doc, model.ProjectOptions{ID: g.workspace, Viewer: g.actor, Hidden: aggregate.HideAll(hide...)})
	})
}

func cmdFingerprint(args []string, out, errOut io.Writer) int {
	var g globals
	fs := newFlagSet("fingerprint", errOut, &g)
	if !parse(fs, errOut, args, 0, "fingerprint") {
		return 2
	}
	return inspect(g, out, errOut, func(_ *app, doc *workspace.Document) (any, error) {
		fp, err := snapshot.Fingerprint(doc)
		if err != nil {
			return nil, err
		}
		return map[string]string{"workspace": g.workspace, "fingerprint": fp}, nil
	})
}

func cmdBundle(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-commons bundle <export|import> <file>")
		return 2
	}
	var g globals
	ctx := context.Background()
	switch args[0] {
	case "export":
		fs := newFlagSet("bundle export", errOut, &g)
		var heads []string
		fs.StringArrayVar(&heads, "head", nil, "head to export (repeatable, default the workspace)")
		if !parse(fs, errOut, args[1:], 1, "bundle export <file> [--head <name> ...]") {
			return 2
		}
		if len(heads) == 0 {
			heads = []string{g.workspace}
		}
		a, err := openApp(ctx, g, errOut)
		if err != nil {
			return fail(errOut, err)
		}
		defer a.Close()
		f, err := os.Create(fs.Arg(0))
		if err != nil {
			return fail(errOut, err)
		}
		if err := bundle.Export(ctx, f, a.store, heads); err != nil {
			_ = f.Close()
			return fail(errOut, err)
		}
		if err := f.Close(); err != nil {
			return fail(errOut, err)
		}
		return emit(out, errOut, map[string]any{"file": fs.Arg(0), "heads": heads})
	case "import":
		fs := newFlagSet("bundle import", errOut, &g)
		var setHeads bool
		fs.BoolVar(&setHeads, "set-heads", false, "point local heads at the imported snapshots")
		if !parse(fs, errOut, args[1:], 1, "bundle import <file> [--set-heads]") {
			return 2
		}
		a, err := openApp(ctx, g, errOut)
		if err != nil {
			return fail(errOut, err)
		}
		defer a.Close()
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return fail(errOut, err)
		}
		defer f.Close()
		imported, err := bundle.Import(ctx, f, a.store)
		if err != nil {
			return fail(errOut, err)
		}
		result := make(map[string]string, len(imported))
		for name, id := range imported {
			if setHeads {
				if err := a.store.SetHead(ctx, name, id); err != nil {
					return fail(errOut, err)
				}
			}
			result[name] = id.String()
		}
		return emit(out, errOut, map[string]any{"heads": result, "moved": setHeads})
	default:
		return unknownSub(errOut, "bundle", args[0], "export", "import")
	}
}
