package items

import (
	"context"
	"testing"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

func TestPkg_UnknownManagerFailsConstruction(t *testing.T) {
	_, err := NewPkg(item.Config{ID: "pkg_foo:x", Type: "pkg_foo", Name: "x"}, newScriptedByPrefixTransport())
	if err == nil {
		t.Fatal("expected an unknown pkg_ manager suffix to fail construction")
	}
}

func TestPkg_InstallsMissingPackage(t *testing.T) {
	tr := newScriptedByPrefixTransport()
	tr.responses["dpkg -s"] = transport.Result{ReturnCode: 1}

	p, err := NewPkg(item.Config{ID: "pkg_apt:nginx", Type: "pkg_apt", Name: "nginx"}, tr)
	if err != nil {
		t.Fatalf("NewPkg: %v", err)
	}

	if status := p.Run(context.Background(), false); status != item.Fixed {
		t.Fatalf("expected FIXED for a missing package, got %v", status)
	}
}

func TestPkg_AlreadyInstalledReportsOK(t *testing.T) {
	tr := newScriptedByPrefixTransport()
	tr.responses["dpkg -s"] = transport.Result{ReturnCode: 0}

	p, err := NewPkg(item.Config{ID: "pkg_apt:nginx", Type: "pkg_apt", Name: "nginx"}, tr)
	if err != nil {
		t.Fatalf("NewPkg: %v", err)
	}

	if status := p.Run(context.Background(), false); status != item.OK {
		t.Fatalf("expected OK when already installed, got %v", status)
	}
}

func TestPkg_UninstallWhenInstalledFalse(t *testing.T) {
	tr := newScriptedByPrefixTransport()
	tr.responses["rpm -q"] = transport.Result{ReturnCode: 0}

	p, err := NewPkg(item.Config{ID: "pkg_yum:telnet", Type: "pkg_yum", Name: "telnet", Attributes: map[string]interface{}{
		"installed": false,
	}}, tr)
	if err != nil {
		t.Fatalf("NewPkg: %v", err)
	}

	if status := p.Run(context.Background(), false); status != item.Fixed {
		t.Fatalf("expected FIXED to remove an unwanted but present package, got %v", status)
	}
}
