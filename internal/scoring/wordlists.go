package scoring

// Fixed vocabulary tables used by the category, creativity and technical-term
// bonuses. These are lookup tables, not learned data; changing them changes
// scores, so treat edits as a scoring change.

var semanticCategories = map[string][]string{
	"people": {
		"person", "man", "woman", "child", "boy", "girl", "people", "character",
		"figure", "human", "individual", "someone", "guy", "lady",
	},
	"actions": {
		"standing", "sitting", "walking", "running", "jumping", "climbing",
		"eating", "drinking", "playing", "working", "holding", "carrying",
		"wearing", "looking", "smiling", "laughing", "throwing", "leaning",
	},
	"objects": {
		"car", "vehicle", "house", "building", "tree", "mountain", "road",
		"path", "table", "chair", "book", "phone", "umbrella", "frisbee",
		"clock", "apple", "train", "laptop", "fence", "plant",
	},
	"styles": {
		"painting", "drawing", "photograph", "photo", "render", "3d", "vector",
		"digital", "oil", "watercolor", "sketch", "style", "claymation",
	},
	"colors": {
		"red", "blue", "green", "yellow", "black", "white", "colorful",
		"bright", "dark", "light", "golden", "silver", "brown", "purple",
		"orange", "pink", "gray", "grey",
	},
	"settings": {
		"indoor", "outdoor", "street", "park", "forest", "city", "village",
		"beach", "mountain", "desert", "town", "factory", "bar", "cabin",
		"spaceship", "barbershop",
	},
	"time": {
		"day", "night", "morning", "evening", "sunny", "cloudy", "rainy",
		"snowy", "foggy", "old", "fashioned",
	},
}

// creativeAdjectives feed the small creativity bonus for descriptive writing.
var creativeAdjectives = []string{
	"vibrant", "majestic", "serene", "dramatic", "mysterious", "elegant",
	"whimsical", "surreal", "vivid", "striking", "dreamy", "moody",
}

// technicalTerms are art-style and technique words worth a per-term bonus
// when both prompts use them.
var technicalTerms = []string{
	"3d", "render", "vector", "digital", "oil", "watercolor", "dslr",
	"fisheye", "claymation", "rembrandt", "installation", "caricature",
	"macro", "bokeh",
}
