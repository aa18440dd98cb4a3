package remote

import (
	"io/fs"
	"os"
	pathpkg "path"

	"github.com/sadopc/godudb/internal/scanner"
)

type sftpClient interface {
	ReadDir(string) ([]os.FileInfo, error)
	Stat(string) (os.FileInfo, error)
	Lstat(string) (os.FileInfo, error)
	RealPath(string) (string, error)
}

// FS exposes a remote filesystem over the SFTP subsystem to the walker.
// Paths use POSIX separators regardless of the local platform.
type FS struct {
	client sftpClient
}

var _ scanner.FS = (*FS)(nil)

func (f *FS) Stat(name string) (fs.FileInfo, error)  { return f.client.Stat(name) }
func (f *FS) Lstat(name string) (fs.FileInfo, error) { return f.client.Lstat(name) }

// ReadDir lists a remote directory. SFTP listings already carry full
// attributes, so the returned entries answer Info without another round
// trip. Devices, sockets and pipes are left out.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	infos, err := f.client.ReadDir(name)
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, 0, len(infos))
	for _, info := range infos {
		if isSpecialRemoteMode(info.Mode()) {
			continue
		}
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}
	return entries, nil
}

func (f *FS) RealPath(name string) (string, error) {
	resolved, err := f.client.RealPath(name)
	if err != nil {
		return "", err
	}
	return cleanRemotePath(resolved), nil
}

func (f *FS) Join(elem ...string) string { return pathpkg.Join(elem...) }
func (f *FS) Dir(name string) string     { return pathpkg.Dir(name) }
func (f *FS) Base(name string) string    { return pathpkg.Base(name) }

func isSpecialRemoteMode(mode os.FileMode) bool {
	return mode&(os.ModeDevice|os.ModeCharDevice|os.ModeSocket|os.ModeNamedPipe|os.ModeIrregular) != 0
}
