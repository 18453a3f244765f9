package host

import (
	"errors"

	"github.com/slipwayhq/slipway/permission"
)

func (h *Host) LoadText(handle, path string) (string, error) {
	bs, err := h.loadBytes(handle, path)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

func (h *Host) LoadBin(handle, path string) ([]byte, error) {
	return h.loadBytes(handle, path)
}

func (h *Host) loadBytes(handle, path string) ([]byte, error) {
	if err := h.authorize(permission.Capability{Kind: permission.KindFiles, Handle: handle, Path: path}); err != nil {
		return nil, err
	}
	if h.Files == nil {
		return nil, errors.New("host: no file provider configured")
	}
	return h.Files.Load(handle, path)
}
