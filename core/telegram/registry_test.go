package telegram

import (
	"testing"

	"github.com/busly/routafare/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noopHandler(tele.Context) error { return nil }

func TestRegistryRejectsBadCommands(t *testing.T) {
	r := NewRegistry()

	r.RegisterCommand("search", commands.Command{Handler: noopHandler, Description: "find a bus"})
	r.RegisterCommand("/blank", commands.Command{Handler: noopHandler})
	r.RegisterCommand("/nohandler", commands.Command{Description: "broken"})

	if n := len(r.Commands()); n != 0 {
		t.Fatalf("registry accepted %d bad commands", n)
	}
}

func TestRegistryIgnoresDuplicateCommands(t *testing.T) {
	r := NewRegistry()

	first := commands.Command{Handler: noopHandler, Description: "first"}
	second := commands.Command{Handler: noopHandler, Description: "second"}
	r.RegisterCommand("/search", first)
	r.RegisterCommand("/search", second)

	if got := r.Commands()["/search"].Description; got != "first" {
		t.Fatalf("duplicate overwrote command: %s", got)
	}
}

func TestRegistryLookupByAlias(t *testing.T) {
	r := NewRegistry()
	r.RegisterCommand("/search", commands.Command{
		Handler:     noopHandler,
		Description: "find a bus",
		Aliases:     []string{"ser"},
	})

	key, _, ok := r.LookupCommand("ser")
	if !ok || key != "/search" {
		t.Fatalf("alias lookup = %q, %v", key, ok)
	}
	key, _, ok = r.LookupCommand("/search")
	if !ok || key != "/search" {
		t.Fatalf("direct lookup = %q, %v", key, ok)
	}
	if _, _, ok = r.LookupCommand("nope"); ok {
		t.Fatal("lookup of unknown command succeeded")
	}
}

func TestRegistryListCommandsFiltersHidden(t *testing.T) {
	r := NewRegistry()
	r.RegisterCommand("/search", commands.Command{Handler: noopHandler, Description: "find a bus"})
	r.RegisterCommand("/stats", commands.Command{Handler: noopHandler, Description: "usage", AdminOnly: true, Hidden: true})

	visible := r.ListCommands(true)
	if len(visible) != 1 || visible[0].Text != "/search" {
		t.Fatalf("visible commands = %+v", visible)
	}
	if all := r.ListCommands(false); len(all) != 2 {
		t.Fatalf("full listing = %d commands, want 2", len(all))
	}
}

func TestRegistryCallbackRegistration(t *testing.T) {
	r := NewRegistry()

	if err := r.RegisterCallback("pick_route", noopHandler); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.RegisterCallback("pick_route", noopHandler); err == nil {
		t.Fatal("duplicate key was accepted")
	}
	if err := r.RegisterCallback("", noopHandler); err == nil {
		t.Fatal("empty key was accepted")
	}

	if _, ok := r.GetCallback("pick_route"); !ok {
		t.Fatal("registered callback not found")
	}
	if keys := r.ListCallbacks(); len(keys) != 1 || keys[0] != "pick_route" {
		t.Fatalf("callback keys = %v", keys)
	}
}
