package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/scratch/internal/saveas"
	"github.com/starford/scratch/internal/storage"
	"github.com/starford/scratch/internal/testutil"
	"github.com/starford/scratch/internal/untitledservice"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	_, vault := testutil.TestVault(t)
	mgr := testutil.TestManager(t)
	svc := untitledservice.NewService(mgr, saveas.New(vault, testutil.QuietLogger()))
	return New(svc), vault
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_untitled":
		result, err = srv.listUntitled(ctx, req)
	case "create_untitled":
		result, err = srv.createUntitled(ctx, req)
	case "read_untitled":
		result, err = srv.readUntitled(ctx, req)
	case "edit_untitled":
		result, err = srv.editUntitled(ctx, req)
	case "save_untitled":
		result, err = srv.saveUntitled(ctx, req)
	case "revert_untitled":
		result, err = srv.revertUntitled(ctx, req)
	case "import_untitled":
		result, err = srv.importUntitled(ctx, req)
	case "get_untitled_contract":
		result, err = srv.getContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func readDetail(t *testing.T, srv *Server, key string) untitledservice.Detail {
	t.Helper()
	r := callTool(t, srv, "read_untitled", map[string]interface{}{"key": key})
	if r.IsError {
		t.Fatalf("read %s: %s", key, resultText(r))
	}
	var d untitledservice.Detail
	if err := json.Unmarshal([]byte(resultText(r)), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return d
}

func TestCreateAndRead(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_untitled", map[string]interface{}{"content": "# Test\nHello"})
	if text := resultText(r); text != "created: Untitled-1" {
		t.Errorf("create result = %q", text)
	}

	d := readDetail(t, srv, "Untitled-1")
	if d.Content != "# Test\nHello" || d.Title != "Test" || !d.Dirty {
		t.Errorf("detail = %+v", d)
	}
}

func TestEditWithIfMatch(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_untitled", map[string]interface{}{"content": "a"})
	d := readDetail(t, srv, "Untitled-1")

	r := callTool(t, srv, "edit_untitled", map[string]interface{}{
		"key": "Untitled-1", "content": "b", "mode": "append", "if_match": d.Checksum,
	})
	if r.IsError {
		t.Fatalf("edit: %s", resultText(r))
	}
	if got := readDetail(t, srv, "Untitled-1").Content; got != "ab" {
		t.Errorf("content = %q", got)
	}

	r = callTool(t, srv, "edit_untitled", map[string]interface{}{
		"key": "Untitled-1", "content": "c", "if_match": d.Checksum,
	})
	if !r.IsError {
		t.Error("stale if_match should fail")
	}
}

func TestSaveAndRevert(t *testing.T) {
	srv, vault := testServer(t)
	callTool(t, srv, "create_untitled", map[string]interface{}{"content": "keep", "associated_path": "notes/keep.md"})
	callTool(t, srv, "create_untitled", map[string]interface{}{"content": "drop"})

	r := callTool(t, srv, "save_untitled", map[string]interface{}{"key": "notes/keep.md"})
	if text := resultText(r); text != "saved: notes/keep.md" {
		t.Errorf("save result = %q", text)
	}
	if data, _ := vault.Read("notes/keep.md"); string(data) != "keep" {
		t.Errorf("vault content = %q", data)
	}

	r = callTool(t, srv, "revert_untitled", map[string]interface{}{"key": "Untitled-1"})
	if r.IsError {
		t.Fatalf("revert: %s", resultText(r))
	}

	r = callTool(t, srv, "list_untitled", map[string]interface{}{})
	if text := strings.TrimSpace(resultText(r)); text != "[]" {
		t.Errorf("list after save+revert = %q", text)
	}
}

func TestReadMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_untitled", map[string]interface{}{"key": "Untitled-9"})
	if !r.IsError || resultText(r) != "not found: Untitled-9" {
		t.Errorf("result = %q, error=%v", resultText(r), r.IsError)
	}
}

func TestImportDataURI(t *testing.T) {
	srv, _ := testServer(t)
	uri := "data:text/markdown;base64," + base64.StdEncoding.EncodeToString([]byte("# Imported"))

	r := callTool(t, srv, "import_untitled", map[string]interface{}{"url": uri})
	if r.IsError {
		t.Fatalf("import: %s", resultText(r))
	}
	if got := readDetail(t, srv, "Untitled-1").Content; got != "# Imported" {
		t.Errorf("content = %q", got)
	}
}

func TestImportRejects(t *testing.T) {
	srv, _ := testServer(t)
	for _, uri := range []string{
		"data:image/png;base64,iVBORw0KGgo=",
		"ftp://example.com/a.md",
		"http://127.0.0.1/a.md",
		"data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0x00}),
	} {
		r := callTool(t, srv, "import_untitled", map[string]interface{}{"url": uri})
		if !r.IsError {
			t.Errorf("import %q should fail", uri)
		}
	}
}

func TestCheckBlockedHost(t *testing.T) {
	tests := []struct {
		host    string
		blocked bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"10.0.0.5", true},
		{"172.16.3.4", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"169.254.10.1", true},
		{"fd00::1", true},
		{"fe80::1", true},
		{"0.0.0.0", true},
		{"::", true},
		{"metadata.google.internal", true},
		{"8.8.8.8", false},
		{"172.32.0.1", false},
		{"2001:4860:4860::8888", false},
	}
	for _, tt := range tests {
		err := checkBlockedHost(tt.host)
		if (err != nil) != tt.blocked {
			t.Errorf("checkBlockedHost(%q) = %v, want blocked=%v", tt.host, err, tt.blocked)
		}
	}
}

func TestImportRejectsPrivateHosts(t *testing.T) {
	srv, _ := testServer(t)
	for _, uri := range []string{
		"http://10.0.0.5/a.md",
		"http://192.168.1.1/a.md",
		"https://[fd00::1]/a.md",
	} {
		r := callTool(t, srv, "import_untitled", map[string]interface{}{"url": uri})
		if !r.IsError || !strings.Contains(resultText(r), "blocked host") {
			t.Errorf("import %q: %s", uri, resultText(r))
		}
	}
}

func TestDecodeDataURI_Plain(t *testing.T) {
	data, err := decodeDataURI("data:,hello%20world")
	if err != nil || string(data) != "hello world" {
		t.Errorf("decode = %q, %v", data, err)
	}
}

func TestContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_untitled_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "Untitled Copy Contract") {
		t.Error("contract text missing header")
	}

	res, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(res) != 1 {
		t.Fatalf("resource = %v, %v", res, err)
	}
	if tc, ok := res[0].(mcp.TextResourceContents); !ok || tc.URI != contractURI {
		t.Errorf("resource contents = %+v", res[0])
	}
}
