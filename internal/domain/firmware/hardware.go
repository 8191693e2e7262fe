package firmware

import (
	"strings"
	"sync"
)

// The image type tag identifies the board family a firmware binary is
// built for. Each type declares the hardware models it can be flashed on;
// the reverse map resolves a device model back to its image type.

var (
	hardwareMu sync.RWMutex

	imageTypeBoards = map[string][]string{
		"ar71xx-generic-tl-wdr4300-v1": {
			"TP-Link TL-WDR4300 v1",
			"TP-LINK TL-WDR4300 v1",
		},
		"ath79-generic-tplink_tl-wdr4300-v1": {
			"TP-Link TL-WDR4300 v1 (ath79)",
		},
		"ar71xx-generic-ubnt-airrouter": {
			"Ubiquiti AirRouter",
		},
		"ramips-mt7621-zbtlink_zbt-wg3526-16m": {
			"ZBT-WG3526 (16M)",
		},
		"x86-64-generic-squashfs-combined": {
			"x86 64-bit",
			"VMware, Inc. VMware Virtual Platform",
			"QEMU Standard PC (i440FX + PIIX, 1996)",
		},
		"mesh-sidekick": {
			"Sidekick Mesh Node",
		},
	}

	boardImageType map[string]string
)

func init() {
	rebuildReverseMap()
}

func rebuildReverseMap() {
	boardImageType = make(map[string]string)
	for imageType, boards := range imageTypeBoards {
		for _, board := range boards {
			boardImageType[board] = imageType
		}
	}
}

// RegisterImageType declares an additional image type and its compatible
// boards. Deployments with hardware outside the built-in map call this at
// startup.
func RegisterImageType(imageType string, boards []string) {
	hardwareMu.Lock()
	defer hardwareMu.Unlock()
	imageTypeBoards[imageType] = boards
	rebuildReverseMap()
}

// BoardsForImageType returns the hardware models compatible with an image
// type, or nil if the type is unknown.
func BoardsForImageType(imageType string) []string {
	hardwareMu.RLock()
	defer hardwareMu.RUnlock()
	boards := imageTypeBoards[imageType]
	out := make([]string, len(boards))
	copy(out, boards)
	if len(out) == 0 {
		return nil
	}
	return out
}

// ImageTypeForBoard resolves a device model to its image type. Returns
// empty string for unknown models.
func ImageTypeForBoard(board string) string {
	hardwareMu.RLock()
	defer hardwareMu.RUnlock()
	return boardImageType[board]
}

// DetectImageType derives the type tag from an image file name by
// stripping the leading distribution prefix, e.g.
// "openwrt-ar71xx-generic-tl-wdr4300-v1-squashfs.bin" →
// "ar71xx-generic-tl-wdr4300-v1-squashfs.bin".
func DetectImageType(filename string) string {
	parts := strings.Split(filename, "-")
	if len(parts) < 2 {
		return filename
	}
	return strings.Join(parts[1:], "-")
}
