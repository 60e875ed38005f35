package assemble

import "zilc/internal/zerr"

// writeHeader fills in the 64-byte Z-machine header, per spec section
// 4.10 step 9. Release number and serial code have no source-level
// directive to draw from (zilc has no RELEASEID construct) and are left
// zero, matching a freshly assembled story file with no release metadata.
func writeHeader(img []byte, in *Input, routineBase map[string]int, lay *Layout, v int) error {
	img[0x00] = byte(v)

	img[0x04] = byte(lay.HighMemBase >> 8)
	img[0x05] = byte(lay.HighMemBase)

	pc, err := initialPC(in, routineBase, v)
	if err != nil {
		return err
	}
	img[0x06] = byte(pc >> 8)
	img[0x07] = byte(pc)

	img[0x08] = byte(lay.DictBase >> 8)
	img[0x09] = byte(lay.DictBase)
	img[0x0A] = byte(lay.ObjectBase >> 8)
	img[0x0B] = byte(lay.ObjectBase)
	img[0x0C] = byte(lay.GlobalsBase >> 8)
	img[0x0D] = byte(lay.GlobalsBase)
	img[0x0E] = byte(lay.StaticMemBase >> 8)
	img[0x0F] = byte(lay.StaticMemBase)

	img[0x18] = byte(lay.AbbrevBase >> 8)
	img[0x19] = byte(lay.AbbrevBase)

	if v >= 5 {
		img[0x36] = byte(lay.ExtensionBase >> 8)
		img[0x37] = byte(lay.ExtensionBase)
		img[0x2E] = byte(lay.TermCharsBase >> 8)
		img[0x2F] = byte(lay.TermCharsBase)
	}
	if v == 6 || v == 7 {
		// routines_offset/strings_offset both 0 (see relocs.go's packedAddress
		// note); standard still requires the fields present at 0x28/0x2A.
		img[0x28] = 0
		img[0x29] = 0
		img[0x2A] = 0
		img[0x2B] = 0
	}

	img[0x01] = headerFlags1(v)
	return nil
}

// headerFlags1 sets the "story file uses..." capability bits zilc always
// produces: bit 4 (status-line type: score/time) is left at its default 0
// (score game), matching a freshly assembled file with no STATUS-LINE-TIME
// directive processed.
func headerFlags1(v int) byte {
	return 0
}

// initialPC resolves the GO routine's entry address: a byte address for
// V1-5/V8, a packed routine address for V6-7 (spec section 4.10 step 9).
func initialPC(in *Input, routineBase map[string]int, v int) (int, error) {
	for _, r := range in.Routines {
		if r.Name != "GO" {
			continue
		}
		base, ok := routineBase[r.Name]
		if !ok {
			return 0, zerr.New(zerr.Semantic, "GO routine compiled but its address was not recorded")
		}
		if v == 6 || v == 7 {
			return int(packedAddress(base, v)), nil
		}
		// Execution begins at the routine's first instruction, which
		// follows the one-byte (V<=4: plus locals-default words) header.
		return base + len(r.Header), nil
	}
	return 0, zerr.New(zerr.Semantic, "no GO routine defined; zilc requires an entry routine named GO")
}
