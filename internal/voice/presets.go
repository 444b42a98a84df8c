package voice

// Clone defaults.
const (
	CloneStyle       = "Custom Clone"
	CloneBaseVoice   = "Fenrir"
	CloneFlag        = "🧬"
	CloneDescription = "AI-generated voice clone from user sample."
	CloneIDPrefix    = "custom-"
)

// DefaultVoiceID is the preset selected on startup.
const DefaultVoiceID = "v1"

// Builtin returns a fresh copy of the built-in presets in display order.
func Builtin() []Preset {
	return []Preset{
		{ID: "v1", Name: "Alpha", Gender: Male, Style: "US Standard", BaseVoice: "Puck", Flag: "🇺🇸", Description: "Clear, standard American male voice.", DefaultPitch: 0, DefaultSpeed: 1.0},
		{ID: "v2", Name: "Beta", Gender: Female, Style: "US Standard", BaseVoice: "Kore", Flag: "🇺🇸", Description: "Clear, standard American female voice.", DefaultPitch: 0, DefaultSpeed: 1.0},
		{ID: "v3", Name: "Gamma", Gender: Male, Style: "US Deep", BaseVoice: "Charon", Flag: "🇺🇸", Description: "Deep, resonant male voice for storytelling.", DefaultPitch: -50, DefaultSpeed: 0.95},
		{ID: "v4", Name: "Delta", Gender: Male, Style: "US Intense", BaseVoice: "Fenrir", Flag: "🇺🇸", Description: "Intense, energetic male voice.", DefaultPitch: 0, DefaultSpeed: 1.1},
		{ID: "v5", Name: "Epsilon", Gender: Female, Style: "US Soft", BaseVoice: "Aoede", Flag: "🇺🇸", Description: "Soft, soothing female voice.", DefaultPitch: 0, DefaultSpeed: 0.95},

		{ID: "v6", Name: "Aarav", Gender: Male, Style: "Indian Professional", BaseVoice: "Puck", Flag: "🇮🇳", Description: "Professional Indian-English male persona.", DefaultPitch: 50, DefaultSpeed: 1.05},
		{ID: "v7", Name: "Priya", Gender: Female, Style: "Indian Soft", BaseVoice: "Aoede", Flag: "🇮🇳", Description: "Soft and polite Indian-English female persona.", DefaultPitch: 100, DefaultSpeed: 0.95},
		{ID: "v8", Name: "Rohan", Gender: Male, Style: "Indian News", BaseVoice: "Fenrir", Flag: "🇮🇳", Description: "Fast-paced Indian news anchor.", DefaultPitch: 0, DefaultSpeed: 1.15},
		{ID: "v9", Name: "Ananya", Gender: Female, Style: "Indian Formal", BaseVoice: "Kore", Flag: "🇮🇳", Description: "Formal Indian corporate persona.", DefaultPitch: 50, DefaultSpeed: 1.0},
		{ID: "v10", Name: "Vihaan", Gender: Male, Style: "Indian Casual", BaseVoice: "Charon", Flag: "🇮🇳", Description: "Casual, deep Indian male voice.", DefaultPitch: -20, DefaultSpeed: 1.0},

		{ID: "v11", Name: "Arthur", Gender: Male, Style: "British Elegant", BaseVoice: "Charon", Flag: "🇬🇧", Description: "Sophisticated British-style male.", DefaultPitch: 0, DefaultSpeed: 0.9},
		{ID: "v12", Name: "Victoria", Gender: Female, Style: "British Prime", BaseVoice: "Kore", Flag: "🇬🇧", Description: "Sharp, prime-time British female anchor.", DefaultPitch: 150, DefaultSpeed: 1.0},

		{ID: "v13", Name: "Newsman", Gender: Male, Style: "Broadcast Fast", BaseVoice: "Fenrir", Flag: "🎙️", Description: "Classic fast-talking newsman.", DefaultPitch: -50, DefaultSpeed: 1.2},
		{ID: "v14", Name: "Newswoman", Gender: Female, Style: "Broadcast Fast", BaseVoice: "Kore", Flag: "🎙️", Description: "Energetic daily update host.", DefaultPitch: 50, DefaultSpeed: 1.2},
		{ID: "v15", Name: "Storyteller M", Gender: Male, Style: "Narrative", BaseVoice: "Charon", Flag: "📖", Description: "Slow, engaging storytelling voice.", DefaultPitch: -100, DefaultSpeed: 0.85},
		{ID: "v16", Name: "Storyteller F", Gender: Female, Style: "Narrative", BaseVoice: "Aoede", Flag: "📖", Description: "Dreamy, audiobook style.", DefaultPitch: -50, DefaultSpeed: 0.9},

		{ID: "v17", Name: "Cyber M", Gender: Male, Style: "Robotic", BaseVoice: "Puck", Flag: "🤖", Description: "Precise, slightly processed male tone.", DefaultPitch: -200, DefaultSpeed: 1.1},
		{ID: "v18", Name: "Cyber F", Gender: Female, Style: "AI Assistant", BaseVoice: "Kore", Flag: "🤖", Description: "Helpful AI assistant tone.", DefaultPitch: 200, DefaultSpeed: 1.05},
		{ID: "v19", Name: "Zen", Gender: Male, Style: "Meditative", BaseVoice: "Charon", Flag: "🧘", Description: "Ultra-low, slow meditative guide.", DefaultPitch: -300, DefaultSpeed: 0.75},
		{ID: "v20", Name: "Breeze", Gender: Female, Style: "Whisper", BaseVoice: "Aoede", Flag: "🍃", Description: "Light, airy, whisper-like tone.", DefaultPitch: 100, DefaultSpeed: 0.8},
	}
}
