package host

import "encoding/base64"

// EncodeBin and DecodeBin implement the encode_bin/decode_bin
// capabilities of spec.md section 4.5, which carry no permission
// gate: they only transform data already in the guest's possession.
func (h *Host) EncodeBin(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func (h *Host) DecodeBin(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
