package identity

// localObject is a hand-curated identity that never needs a remote lookup.
type localObject struct {
	typeFR string
	typeEN string
	tagsFR []string
	tagsEN []string
}

var localObjects = map[string]localObject{
	"M 51": {
		typeFR: "galaxie spirale", typeEN: "spiral galaxy",
		tagsFR: []string{"galaxie", "galaxie spirale", "interaction"},
		tagsEN: []string{"galaxy", "spiral galaxy", "interaction"},
	},
	"M 77": {
		typeFR: "galaxie spirale", typeEN: "spiral galaxy",
		tagsFR: []string{"galaxie", "galaxie spirale"},
		tagsEN: []string{"galaxy", "spiral galaxy"},
	},
	"M 94": {
		typeFR: "galaxie spirale", typeEN: "spiral galaxy",
		tagsFR: []string{"galaxie", "galaxie spirale"},
		tagsEN: []string{"galaxy", "spiral galaxy"},
	},
	"IC 342": {
		typeFR: "galaxie spirale", typeEN: "spiral galaxy",
		tagsFR: []string{"galaxie", "galaxie spirale"},
		tagsEN: []string{"galaxy", "spiral galaxy"},
	},
	"JUPITER": {
		typeFR: "planète", typeEN: "planet",
		tagsFR: []string{"planète"},
		tagsEN: []string{"planet"},
	},
	"DENEBOLA": {
		typeFR: "étoile", typeEN: "star",
		tagsFR: []string{"étoile"},
		tagsEN: []string{"star"},
	},
}

type tagPair struct {
	fr []string
	en []string
}

// SIMBAD object type codes to gallery tags.
var otypeTags = map[string]tagPair{
	"G":     {fr: []string{"galaxie"}, en: []string{"galaxy"}},
	"GiG":   {fr: []string{"galaxie", "interaction"}, en: []string{"galaxy", "interaction"}},
	"GPair": {fr: []string{"paire de galaxies"}, en: []string{"galaxy pair"}},
	"ClG":   {fr: []string{"amas de galaxies"}, en: []string{"galaxy cluster"}},
	"GlC":   {fr: []string{"amas globulaire"}, en: []string{"globular cluster"}},
	"OpC":   {fr: []string{"amas ouvert"}, en: []string{"open cluster"}},
	"PN":    {fr: []string{"nébuleuse planétaire"}, en: []string{"planetary nebula"}},
	"HII":   {fr: []string{"région HII", "nébuleuse"}, en: []string{"HII region", "nebula"}},
	"SNR":   {fr: []string{"reste de supernova"}, en: []string{"supernova remnant"}},
	"Neb":   {fr: []string{"nébuleuse"}, en: []string{"nebula"}},
	"RfN":   {fr: []string{"nébuleuse par réflexion"}, en: []string{"reflection nebula"}},
	"DNe":   {fr: []string{"nébuleuse sombre"}, en: []string{"dark nebula"}},
	"Star":  {fr: []string{"étoile"}, en: []string{"star"}},
	"Pl":    {fr: []string{"planète"}, en: []string{"planet"}},
	"SyS":   {fr: []string{"étoile binaire"}, en: []string{"binary star"}},
}

// Display types keyed by English tag, most specific first.
var typeRules = []struct {
	tags  []string
	label string
}{
	{tags: []string{"planetary nebula"}, label: "Planetary Nebula"},
	{tags: []string{"globular cluster"}, label: "Globular Cluster"},
	{tags: []string{"open cluster"}, label: "Open Cluster"},
	{tags: []string{"nebula", "HII region"}, label: "Nebula"},
	{tags: []string{"spiral galaxy"}, label: "Spiral Galaxy"},
	{tags: []string{"galaxy"}, label: "Galaxy"},
	{tags: []string{"star"}, label: "Star"},
	{tags: []string{"planet"}, label: "Planet"},
}
