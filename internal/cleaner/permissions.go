package cleaner

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"syscall"
)

// PermissionManager handles permission checking
type PermissionManager struct {
	isRoot bool
	uid    string
	gid    string
}

// NewPermissionManager creates a new PermissionManager
func NewPermissionManager() *PermissionManager {
	pm := &PermissionManager{}
	if currentUser, err := user.Current(); err == nil {
		pm.isRoot = currentUser.Uid == "0"
		pm.uid = currentUser.Uid
		pm.gid = currentUser.Gid
	}
	return pm
}

// CanDelete checks if we may unlink or rename path, which is decided by
// write permission on its parent directory
func (pm *PermissionManager) CanDelete(path string) (bool, error) {
	if _, err := os.Lstat(path); err != nil {
		return false, err
	}

	if pm.isRoot {
		return true, nil
	}

	parentInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return false, err
	}

	stat, ok := parentInfo.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("unable to get file stats")
	}

	if fmt.Sprint(stat.Uid) == pm.uid {
		return parentInfo.Mode()&0200 != 0, nil
	}
	if fmt.Sprint(stat.Gid) == pm.gid {
		return parentInfo.Mode()&0020 != 0, nil
	}
	return parentInfo.Mode()&0002 != 0, nil
}

// RequiresElevation checks if a path requires elevated permissions to delete
func (pm *PermissionManager) RequiresElevation(path string) bool {
	if pm.isRoot {
		return false
	}

	canDelete, err := pm.CanDelete(path)
	if err != nil {
		// missing paths fail later with a clearer error
		return !os.IsNotExist(err)
	}
	return !canDelete
}

// IsSpecialFile checks if a path is a special file (device, socket, pipe).
// Symlinks are not followed: removing a link never touches its target.
func IsSpecialFile(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}

	mode := info.Mode()

	switch {
	case mode&os.ModeCharDevice != 0:
		return true, fmt.Errorf("is a character device")
	case mode&os.ModeDevice != 0:
		return true, fmt.Errorf("is a device file")
	case mode&os.ModeSocket != 0:
		return true, fmt.Errorf("is a socket")
	case mode&os.ModeNamedPipe != 0:
		return true, fmt.Errorf("is a named pipe (FIFO)")
	}

	return false, nil
}

// IsSafeToDelete performs the filesystem safety checks on a path
func IsSafeToDelete(path string) error {
	isSpecial, err := IsSpecialFile(path)
	if isSpecial {
		return fmt.Errorf("refusing to delete special file: %w", err)
	}
	return err
}
