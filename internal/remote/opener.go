package remote

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"github.com/sadopc/godudb/internal/lifecycle"
)

// Opener resolves sftp:// roots over SSH and hands every other root to
// fallback.
type Opener struct {
	cfg      Config
	fallback lifecycle.OpenFunc
	dial     func(context.Context, Target, Config) (sftpClient, io.Closer, error)
}

// NewOpener creates an opener. A nil fallback means lifecycle.OpenLocal.
func NewOpener(cfg Config, fallback lifecycle.OpenFunc) *Opener {
	if fallback == nil {
		fallback = lifecycle.OpenLocal
	}
	return &Opener{cfg: cfg, fallback: fallback, dial: dialSFTP}
}

// Open implements lifecycle.OpenFunc.
func (o *Opener) Open(ctx context.Context, root string) (lifecycle.Source, error) {
	if !IsRemote(root) {
		return o.fallback(ctx, root)
	}
	t, err := ParseTarget(root, o.cfg.Port)
	if err != nil {
		return lifecycle.Source{}, err
	}

	client, closer, err := o.dial(ctx, t, o.cfg)
	if err != nil {
		return lifecycle.Source{}, err
	}
	src, err := openWithClient(client, t)
	if err != nil {
		_ = closer.Close()
		return lifecycle.Source{}, err
	}
	src.Close = closer.Close
	return src, nil
}

func openWithClient(client sftpClient, t Target) (lifecycle.Source, error) {
	rootPath := t.Path
	if resolved, err := client.RealPath(rootPath); err == nil {
		rootPath = cleanRemotePath(resolved)
	}

	info, err := client.Stat(rootPath)
	if err != nil {
		return lifecycle.Source{}, fmt.Errorf("cannot stat remote path %q: %w", rootPath, err)
	}
	if !info.IsDir() {
		return lifecycle.Source{}, fmt.Errorf("%s is not a directory: %w", rootPath, fs.ErrInvalid)
	}

	return lifecycle.Source{
		FS:       &FS{client: client},
		Root:     rootPath,
		Location: t.Location(rootPath),
	}, nil
}
