package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/vango-dev/huddle/pkg/session"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "config error",
			code:    "H100",
			wantMsg: "Config file not found",
			wantCat: CategoryConfig,
		},
		{
			name:    "session error",
			code:    "H201",
			wantMsg: "Client name in use",
			wantCat: CategorySession,
		},
		{
			name:    "registry error",
			code:    "H300",
			wantMsg: "Registry failed",
			wantCat: CategoryRegistry,
		},
		{
			name:    "unknown error code",
			code:    "H999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "unknown flag %q", "--x")
	if err.Message != `unknown flag "--x"` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want %q", err.Category, CategoryCLI)
	}
}

func TestHuddleError_Error(t *testing.T) {
	if got := New("H207").Error(); got != "H207: No such channel" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&HuddleError{Message: "test error"}).Error(); got != "test error" {
		t.Errorf("Error() = %q, want %q", got, "test error")
	}
	wrapped := New("H101").Wrap(fmt.Errorf("line 3: bad"))
	if got := wrapped.Error(); got != "H101: Invalid config file: line 3: bad" {
		t.Errorf("Error() = %q", got)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"name in use", fmt.Errorf("join: %w", session.ErrNameInUse), "H201"},
		{"connect", &session.ConnectError{Addr: "x:1", Err: fmt.Errorf("refused")}, "H200"},
		{"connect wrapping no such session", &session.ConnectError{Addr: "x:1", Err: session.ErrNoSuchSession}, "H202"},
		{"registry", &session.RegistryError{Type: "socket", Err: fmt.Errorf("bind")}, "H300"},
		{"decode", &session.ProtocolDecodeError{What: "stock", Err: fmt.Errorf("short")}, "H400"},
		{"other", fmt.Errorf("boom"), "H501"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := FromError(tt.err, "H501")
			if he.Code != tt.want {
				t.Errorf("Code = %q, want %q", he.Code, tt.want)
			}
			if !stderrors.Is(he, tt.err) {
				t.Error("HuddleError does not wrap the original error")
			}
		})
	}

	if FromError(nil, "H501") != nil {
		t.Error("FromError(nil) should be nil")
	}
	orig := New("H100")
	if FromError(fmt.Errorf("load: %w", orig), "H501") != orig {
		t.Error("FromError should return a wrapped HuddleError as is")
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	out := New("H201").Wrap(session.ErrNameInUse).Format()
	for _, want := range []string{
		"ERROR H201: Client name in use",
		"session: client name in use",
		"Another client with this name",
		"Hint: Pick another --name",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() used colors while disabled")
	}
}

func TestFormatJSON(t *testing.T) {
	got := New("H206").Wrap(fmt.Errorf("AAPL")).FormatJSON()
	want := `{"code":"H206","category":"session","message":"Not joined","detail":"The client must join the channel or byte array first.","cause":"AAPL"}`
	if got != want {
		t.Errorf("FormatJSON() =\n%s\nwant\n%s", got, want)
	}
}

func TestFprintPlainError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Fprint(&buf, fmt.Errorf("plain"))
	if !strings.Contains(buf.String(), "ERROR: plain") {
		t.Errorf("Fprint() = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 30), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if len(lines) < 2 {
		t.Errorf("wrapText produced %d lines", len(lines))
	}
	if wrapText("", 10) != nil {
		t.Error("wrapText(\"\") should be nil")
	}
}

func TestAllCodesHaveTemplates(t *testing.T) {
	for _, code := range GetAllCodes() {
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("code %s has incomplete template %+v", code, tmpl)
		}
	}
	for _, sc := range sessionCodes {
		if _, ok := GetTemplate(sc.code); !ok {
			t.Errorf("session code %s is not registered", sc.code)
		}
	}
}
