package config

// DefaultStageIDs is the canonical stage order.
func DefaultStageIDs() []string {
	return []string{"capture", "contextualize", "clarify", "categorize", "crystallize", "connect"}
}

// Default returns the built-in configuration used when config files are
// missing or unreadable.
func Default() *Config {
	return &Config{
		Agents: map[string]AgentConfig{
			"capture": {
				Role:      "Thought Capture Specialist",
				Goal:      "Capture raw thoughts faithfully and completely",
				Backstory: "You preserve ideas exactly as they arrive, trimming only noise.",
				LLMConfig: "default",
			},
			"contextualize": {
				Role:      "Context Analyst",
				Goal:      "Add the metadata that makes a thought findable later",
				Backstory: "You notice domain, urgency and tone at a glance.",
				LLMConfig: "default",
			},
			"clarify": {
				Role:      "Thought Clarifier",
				Goal:      "Expand terse thoughts into coherent statements",
				Backstory: "You turn fragments into sentences without inventing facts.",
				LLMConfig: "default",
			},
			"categorize": {
				Role:      "Pattern Recognition Specialist",
				Goal:      "Place each thought in a small, stable set of categories",
				Backstory: "You see the patterns that connect scattered ideas.",
				LLMConfig: "default",
			},
			"crystallize": {
				Role:      "Thought Crystallizer",
				Goal:      "Distill thoughts into concrete next actions",
				Backstory: "You turn ideas into the smallest useful step.",
				LLMConfig: "default",
			},
			"connect": {
				Role:      "Knowledge Integrator",
				Goal:      "Link the thought to related knowledge",
				Backstory: "You establish the connections that make notes useful later.",
				LLMConfig: "default",
			},
		},
		Folders: FoldersConfig{
			Base:   "thoughts",
			Stages: map[string]string{},
		},
		Prompts: map[string]string{
			"capture_prompt_template":       "Restate the following raw thought as a clean, faithful note. Keep every idea.\n\nThought: {thought_content}",
			"contextualize_prompt_template": "Identify the domain, urgency, tone and any people or projects referenced in this thought.\n\nThought: {thought_content}",
			"clarify_prompt_template":       "Rewrite this thought so that someone without context understands it. Do not add facts.\n\nThought: {thought_content}",
			"categorize_prompt_template":    "Assign this thought a primary category and up to three tags.\n\nThought: {thought_content}",
			"crystallize_prompt_template":   "Distill this thought into a one-line summary and a list of concrete next actions.\n\nThought: {thought_content}",
			"connect_prompt_template":       "Suggest related topics, prior notes or resources this thought connects to.\n\nThought: {thought_content}",
		},
		Pipeline: PipelineConfig{
			Stages:      DefaultStageIDs(),
			ContentMode: ContentThreaded,
			Settle:      "500ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		LLMs: map[string]LLMConfig{
			"default": DefaultLLMConfig(),
		},
	}
}
