package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	pathpkg "path"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/sadopc/godudb/internal/lifecycle"
	"github.com/sadopc/godudb/internal/model"
	"github.com/sadopc/godudb/internal/scanner"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw      string
		override int
		want     Target
		loc      string
		wantErr  bool
	}{
		{raw: "sftp://alice@example.com/var/log", want: Target{User: "alice", Host: "example.com", Port: 22, Path: "/var/log"}, loc: "sftp://alice@example.com/var/log"},
		{raw: "sftp://alice@example.com:2222/srv/", want: Target{User: "alice", Host: "example.com", Port: 2222, Path: "/srv"}, loc: "sftp://alice@example.com:2222/srv"},
		{raw: "sftp://alice@example.com", override: 2200, want: Target{User: "alice", Host: "example.com", Port: 2200, Path: "."}},
		{raw: "sftp://alice@[::1]:2022/x", want: Target{User: "alice", Host: "::1", Port: 2022, Path: "/x"}, loc: "sftp://alice@[::1]:2022/x"},
		{raw: "sftp://example.com/x", wantErr: true},
		{raw: "sftp://alice@example.com:99999/x", wantErr: true},
		{raw: "/local/path", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseTarget(tc.raw, tc.override)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ParseTarget = %+v, want %+v", got, tc.want)
			}
			if tc.loc != "" {
				if loc := got.Location(got.Path); loc != tc.loc {
					t.Fatalf("Location = %q, want %q", loc, tc.loc)
				}
				// Locations round-trip through the parser.
				again, err := ParseTarget(tc.loc, 0)
				if err != nil || again != got {
					t.Fatalf("round trip = %+v, %v", again, err)
				}
			}
		})
	}
}

func TestFS_WalkRemoteTree(t *testing.T) {
	client := newFakeSFTP(map[string]fakeNode{
		"/root":                 {mode: os.ModeDir, children: []string{"keep", "file.txt", "link", "pipe"}},
		"/root/keep":            {mode: os.ModeDir, children: []string{"inside.txt"}},
		"/root/keep/inside.txt": {size: 5},
		"/root/file.txt":        {size: 7},
		"/root/link":            {mode: os.ModeSymlink, size: 3, target: "/root/file.txt"},
		"/root/pipe":            {mode: os.ModeNamedPipe},
	})
	fsys := &FS{client: client}

	sink := scanner.NewCollectSink()
	sum, err := scanner.NewWalker(fsys, scanner.DefaultOptions(), nil).Walk("/root", nil, nil, nil, sink)
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	if sum.TotalSize != 15 || sum.TotalFiles != 3 || sum.TotalDirs != 2 {
		t.Fatalf("summary = %+v", sum.Stats)
	}
	entries := map[string]model.Entry{}
	for _, e := range sink.Entries() {
		entries[e.Path] = e
	}
	if _, ok := entries["/root/pipe"]; ok {
		t.Fatal("special files must be skipped")
	}
	if e := entries["/root/keep/inside.txt"]; e.ParentPath != "/root/keep" || e.Name != "inside.txt" || e.ModTime.IsZero() {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e := entries["/root/link"]; e.IsDir || e.Size != 3 {
		t.Fatalf("symlink must be recorded as itself, got %+v", e)
	}
	if client.stats != 0 {
		t.Fatalf("walker issued %d Stat calls; listings should carry metadata", client.stats)
	}
}

func TestFS_FollowSymlinkDirDedups(t *testing.T) {
	client := newFakeSFTP(map[string]fakeNode{
		"/root":              {mode: os.ModeDir, children: []string{"dir", "dir-link"}},
		"/root/dir":          {mode: os.ModeDir, children: []string{"item.txt"}},
		"/root/dir/item.txt": {size: 10},
		"/root/dir-link":     {mode: os.ModeSymlink, target: "/root/dir"},
	})
	opts := scanner.DefaultOptions()
	opts.FollowSymlinks = true

	sum, err := scanner.NewWalker(&FS{client: client}, opts, nil).Walk("/root", nil, nil, nil, scanner.NewCollectSink())
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	if sum.TotalSize != 10 {
		t.Fatalf("TotalSize = %d, want 10 (symlinked dir counted once)", sum.TotalSize)
	}
}

func TestOpener_RoutesByScheme(t *testing.T) {
	client := newFakeSFTP(map[string]fakeNode{
		"/home/alice":      {mode: os.ModeDir, children: []string{"f"}},
		"/home/alice/f":    {size: 1},
		"/home/alice/file": {size: 1},
	})
	client.home = "/home/alice"

	var dialed Target
	o := NewOpener(Config{}, func(context.Context, string) (lifecycle.Source, error) {
		return lifecycle.Source{Location: "local"}, nil
	})
	o.dial = func(_ context.Context, target Target, _ Config) (sftpClient, io.Closer, error) {
		dialed = target
		return client, noopCloser{}, nil
	}

	src, err := o.Open(context.Background(), "/some/local/dir")
	if err != nil || src.Location != "local" {
		t.Fatalf("local root not delegated: %+v, %v", src, err)
	}

	src, err = o.Open(context.Background(), "sftp://alice@example.com")
	if err != nil {
		t.Fatalf("remote open: %v", err)
	}
	if dialed.Host != "example.com" || dialed.User != "alice" {
		t.Fatalf("dialed %+v", dialed)
	}
	if src.Root != "/home/alice" || src.Location != "sftp://alice@example.com/home/alice" {
		t.Fatalf("source = %+v", src)
	}
	if src.Close == nil || src.Close() != nil {
		t.Fatal("remote source must close its connection")
	}

	if _, err := o.Open(context.Background(), "sftp://alice@example.com/home/alice/file"); !errors.Is(err, fs.ErrInvalid) {
		t.Fatalf("file root error = %v, want ErrInvalid", err)
	}
	if _, err := o.Open(context.Background(), "sftp://alice@example.com/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing root error = %v, want ErrNotExist", err)
	}
}

func TestConnectSSH_RespectsContextCancellation(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()

	origDial, origHandshake := dialContext, sshNewClientConn
	defer func() { dialContext, sshNewClientConn = origDial, origHandshake }()

	dialContext = func(context.Context, string, string) (net.Conn, error) { return clientConn, nil }
	sshNewClientConn = func(conn net.Conn, _ string, _ *ssh.ClientConfig) (ssh.Conn, <-chan ssh.NewChannel, <-chan *ssh.Request, error) {
		// Block like a stalled handshake until the connection is closed.
		_, err := conn.Read(make([]byte, 1))
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := connectSSH(ctx, "example.com:22", &ssh.ClientConfig{})
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected handshake error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connectSSH did not return after context cancellation")
	}
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

type fakeNode struct {
	mode      os.FileMode
	size      int64
	mtime     time.Time
	target    string
	children  []string
	errOnRead bool
}

type fakeSFTP struct {
	nodes map[string]fakeNode
	home  string
	stats int
}

func newFakeSFTP(nodes map[string]fakeNode) *fakeSFTP {
	cp := make(map[string]fakeNode, len(nodes))
	for k, v := range nodes {
		if v.mtime.IsZero() {
			v.mtime = time.Unix(1700000000, 0)
		}
		cp[cleanRemotePath(k)] = v
	}
	return &fakeSFTP{nodes: cp, home: "/"}
}

func (f *fakeSFTP) ReadDir(path string) ([]os.FileInfo, error) {
	node, err := f.get(path)
	if err != nil {
		return nil, err
	}
	if !node.mode.IsDir() {
		return nil, fmt.Errorf("not a directory")
	}
	if node.errOnRead {
		return nil, fmt.Errorf("permission denied")
	}

	out := make([]os.FileInfo, 0, len(node.children))
	for _, child := range node.children {
		childPath := cleanRemotePath(pathpkg.Join(cleanRemotePath(path), child))
		childNode, ok := f.nodes[childPath]
		if !ok {
			return nil, fmt.Errorf("missing child %s", childPath)
		}
		out = append(out, fakeInfo{name: child, size: childNode.size, mode: childNode.mode, mtime: childNode.mtime})
	}
	return out, nil
}

func (f *fakeSFTP) Stat(path string) (os.FileInfo, error) {
	f.stats++
	resolved, err := f.RealPath(path)
	if err != nil {
		return nil, err
	}
	node, ok := f.nodes[resolved]
	if !ok {
		return nil, os.ErrNotExist
	}
	return fakeInfo{name: pathpkg.Base(resolved), size: node.size, mode: node.mode, mtime: node.mtime}, nil
}

func (f *fakeSFTP) Lstat(path string) (os.FileInfo, error) {
	node, err := f.get(path)
	if err != nil {
		return nil, err
	}
	return fakeInfo{name: pathpkg.Base(path), size: node.size, mode: node.mode, mtime: node.mtime}, nil
}

func (f *fakeSFTP) RealPath(path string) (string, error) {
	clean := cleanRemotePath(path)
	if clean == "." {
		clean = f.home
	}
	return f.resolve(clean, map[string]bool{})
}

func (f *fakeSFTP) get(path string) (fakeNode, error) {
	node, ok := f.nodes[cleanRemotePath(path)]
	if !ok {
		return fakeNode{}, os.ErrNotExist
	}
	return node, nil
}

func (f *fakeSFTP) resolve(path string, seen map[string]bool) (string, error) {
	node, ok := f.nodes[path]
	if !ok {
		return "", os.ErrNotExist
	}
	if node.mode&os.ModeSymlink == 0 {
		return path, nil
	}
	if seen[path] {
		return "", fmt.Errorf("symlink cycle")
	}
	seen[path] = true

	target := node.target
	if !pathpkg.IsAbs(target) {
		target = pathpkg.Join(pathpkg.Dir(path), target)
	}
	return f.resolve(cleanRemotePath(target), seen)
}

type fakeInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	mtime time.Time
}

func (fi fakeInfo) Name() string       { return fi.name }
func (fi fakeInfo) Size() int64        { return fi.size }
func (fi fakeInfo) Mode() os.FileMode  { return fi.mode }
func (fi fakeInfo) ModTime() time.Time { return fi.mtime }
func (fi fakeInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi fakeInfo) Sys() any           { return nil }
