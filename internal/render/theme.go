package render

// Theme holds colors for reference graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by reference category.
	EdgeCall   string // PCREL_CALL / ABS_CALL / MILLI_REL
	EdgeData   string // DATA_ONE_SYMBOL / plabels / GP-relative
	EdgeImport string // references to symbols with no local definition

	// Node accents.
	SubspaceFill string // subspace (code/data container) nodes
	ExternalText string // unsatisfied external symbols
}

// Slate is the default theme: monochrome boxes, sparse color on edges.
var Slate = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeCall:   "#0B3D91",
	EdgeData:   "#00695C",
	EdgeImport: "#FC3D21",

	SubspaceFill: "#ECEFF1",
	ExternalText: "#9E9E9E",
}
