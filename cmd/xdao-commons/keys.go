package main

import (
	"crypto/rand"
	"fmt"
	"io"

	"xdao.co/commons/keys"
)

type keyInfo struct {
	Identity  string `json:"identity"`
	Role      string `json:"role,omitempty"`
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"publicKey"`
	Path      string `json:"path,omitempty"`
}

type keyEntry struct {
	Identity string   `json:"identity"`
	Roles    []string `json:"roles"`
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "xdao-commons key: local participant keys")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  xdao-commons key init --as <id> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  xdao-commons key derive --as <id> --role <role> [--force]")
	fmt.Fprintln(w, "  xdao-commons key list")
	fmt.Fprintln(w, "  xdao-commons key export --as <id> [--role <role>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The configured signing.algorithm decides which public key a seed yields.")
}

// describe loads the stored key back and reports its public half under the
// configured algorithm.
func (a *app) describe(role, path string) (keyInfo, error) {
	s, err := a.keys.LoadSignerFor(a.g.actor, role, a.alg)
	if err != nil {
		return keyInfo{}, err
	}
	return keyInfo{Identity: a.g.actor, Role: role, Algorithm: string(a.alg), PublicKey: s.PublicKey(), Path: path}, nil
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	var g globals
	fs := newFlagSet("key init", errOut, &g)
	var seedHex string
	var force bool
	fs.StringVar(&seedHex, "seed-hex", "", "seed as 64 hex chars (for reproducible demos)")
	fs.BoolVar(&force, "force", false, "overwrite an existing key")
	if !parse(fs, errOut, args, 0, "key init --as <id> [--seed-hex <64hex>] [--force]") {
		return 2
	}
	if err := keys.CheckKeyName(g.actor); err != nil {
		fmt.Fprintf(errOut, "invalid --as: %v\n", err)
		return 2
	}
	a, err := newApp(g, errOut)
	if err != nil {
		return fail(errOut, err)
	}

	var path string
	if seedHex != "" {
		seed, derr := keys.ParseSeedHex(seedHex)
		if derr != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", derr)
			return 2
		}
		_, path, err = a.keys.InitializeRootKey(g.actor, seed, force)
	} else {
		_, path, err = a.keys.GenerateRootKey(g.actor, rand.Reader, force)
	}
	if err != nil {
		return fail(errOut, err)
	}
	info, err := a.describe("", path)
	if err != nil {
		return fail(errOut, err)
	}
	return emit(out, errOut, info)
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	var g globals
	fs := newFlagSet("key derive", errOut, &g)
	var force bool
	fs.BoolVar(&force, "force", false, "overwrite an existing role key")
	if !parse(fs, errOut, args, 0, "key derive --as <id> --role <role> [--force]") {
		return 2
	}
	if err := keys.CheckKeyName(g.actor); err != nil {
		fmt.Fprintf(errOut, "invalid --as: %v\n", err)
		return 2
	}
	if err := keys.CheckRole(g.role); err != nil {
		fmt.Fprintf(errOut, "invalid --role: %v\n", err)
		return 2
	}
	a, err := newApp(g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	_, path, err := a.keys.DeriveKeyFromRole(g.actor, g.role, force)
	if err != nil {
		return fail(errOut, err)
	}
	info, err := a.describe(g.role, path)
	if err != nil {
		return fail(errOut, err)
	}
	return emit(out, errOut, info)
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	var g globals
	fs := newFlagSet("key export", errOut, &g)
	if !parse(fs, errOut, args, 0, "key export --as <id> [--role <role>]") {
		return 2
	}
	if err := keys.CheckKeyName(g.actor); err != nil {
		fmt.Fprintf(errOut, "invalid --as: %v\n", err)
		return 2
	}
	a, err := newApp(g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	info, err := a.describe(g.role, "")
	if err != nil {
		return fail(errOut, err)
	}
	return emit(out, errOut, info)
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	var g globals
	fs := newFlagSet("key list", errOut, &g)
	if !parse(fs, errOut, args, 0, "key list") {
		return 2
	}
	a, err := newApp(g, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	entries, err := a.keys.ListKeys()
	if err != nil {
		return fail(errOut, err)
	}
	list := make([]keyEntry, 0, len(entries))
	for _, e := range entries {
		roles := e.Roles
		if roles == nil {
			roles = []string{}
		}
		list = append(list, keyEntry{Identity: e.Identity, Roles: roles})
	}
	return emit(out, errOut, list)
}
