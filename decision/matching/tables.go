package matching

// Tables is the immutable vocabulary the matcher is built from.
type Tables struct {
	// Synonyms maps a canonical name to alternate spellings and
	// translations. Matching is symmetric within a group.
	Synonyms map[string][]string `yaml:"synonyms" json:"synonyms"`

	// Filler lists modifier words removed during stemming.
	Filler []string `yaml:"filler" json:"filler"`
}

// DefaultTables returns the English/French kitchen vocabulary.
func DefaultTables() Tables {
	return Tables{
		Synonyms: map[string][]string{
			"chicken":        {"poulet", "volaille"},
			"chicken breast": {"poitrine de poulet", "poitrine poulet", "blanc de poulet"},
			"chicken thigh":  {"cuisse de poulet", "haut de cuisse"},
			"beef":           {"boeuf"},
			"ground beef":    {"boeuf moulu"},
			"pork":           {"porc"},
			"pork belly":     {"flanc de porc", "poitrine de porc"},
			"duck":           {"canard"},
			"lamb":           {"agneau"},
			"shrimp":         {"crevette", "prawn"},
			"fish":           {"poisson"},
			"salmon":         {"saumon"},
			"tuna":           {"thon"},
			"squid":          {"calmar", "calamar"},
			"egg":            {"oeuf"},
			"onion":          {"oignon"},
			"green onion":    {"oignon vert", "scallion", "echalote verte"},
			"shallot":        {"echalote"},
			"garlic":         {"ail"},
			"ginger":         {"gingembre"},
			"carrot":         {"carotte"},
			"cabbage":        {"chou"},
			"nappa cabbage":  {"chou nappa", "napa cabbage", "chou chinois"},
			"bok choy":       {"pak choi", "bok choi"},
			"cilantro":       {"coriandre", "coriander"},
			"mint":           {"menthe"},
			"basil":          {"basilic"},
			"thai basil":     {"basilic thai"},
			"lemongrass":     {"citronnelle"},
			"lime":           {"citron vert"},
			"lemon":          {"citron"},
			"rice":           {"riz"},
			"jasmine rice":   {"riz jasmin"},
			"noodle":         {"nouille"},
			"rice noodle":    {"nouille de riz", "vermicelle de riz", "vermicelle riz"},
			"bean sprout":    {"feve germee", "germe de soja", "pousse de soja"},
			"mushroom":       {"champignon"},
			"bell pepper":    {"poivron"},
			"tomato":         {"tomate"},
			"cucumber":       {"concombre"},
			"lettuce":        {"laitue"},
			"potato":         {"pomme de terre", "patate"},
			"spinach":        {"epinard"},
			"peanut":         {"arachide", "cacahuete"},
			"oil":            {"huile"},
			"vegetable oil":  {"huile vegetale"},
			"sugar":          {"sucre"},
			"salt":           {"sel"},
			"flour":          {"farine"},
			"milk":           {"lait"},
			"coconut milk":   {"lait de coco"},
			"cream":          {"creme"},
			"butter":         {"beurre"},
			"cheese":         {"fromage"},
			"vinegar":        {"vinaigre"},
			"fish sauce":     {"sauce poisson", "nuoc mam"},
			"soy sauce":      {"sauce soya", "sauce soja"},
			"tofu":           {"tofu ferme"},
		},
		Filler: []string{
			// English
			"fresh", "frozen", "dried", "diced", "chopped", "minced", "sliced",
			"cubed", "shredded", "whole", "organic", "raw", "boneless",
			"skinless", "natural", "premium", "quality", "grade", "large",
			"small", "medium", "extra", "the", "of", "and", "a", "aa",
			// French
			"frais", "fraiche", "congele", "congelee", "seche", "sechee",
			"hache", "hachee", "emince", "emincee", "tranche", "tranchee",
			"entier", "entiere", "bio", "biologique", "cru", "crue", "desosse",
			"desossee", "sans", "peau", "naturel", "qualite", "gros", "grosse",
			"petit", "petite", "moyen", "moyenne", "de", "du", "des", "la",
			"le", "les", "d", "l", "et", "en",
		},
	}
}
