package format

// Align8 rounds n up to the cell alignment.
func Align8(n int) int {
	return (n + CellAlignment - 1) &^ (CellAlignment - 1)
}

// AlignHBIN rounds n up to the hive bin alignment.
func AlignHBIN(n int) int {
	return (n + HBINAlignment - 1) &^ (HBINAlignment - 1)
}

// CellSize returns the aligned on-disk size for a payload of n bytes.
func CellSize(payload int) int {
	return Align8(payload + CellHeaderSize)
}
