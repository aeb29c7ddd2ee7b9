package intent

import (
	"regexp"

	"github.com/nidhogg/nuka-academy/internal/agent"
)

// PatternGroup is the set of patterns that signal one intent.
type PatternGroup struct {
	Intent   Intent
	Patterns []*regexp.Regexp
}

// NamedPattern labels whatever text its pattern matches.
type NamedPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// Tables is the data the analyzer classifies with. The zero value matches
// nothing and routes every request to the general template, if one exists.
type Tables struct {
	// Intents are tested in order; the first group with a match wins.
	Intents      []PatternGroup
	Technologies []NamedPattern
	ProjectTypes []NamedPattern
	Goals        []NamedPattern
	Timeframes   []NamedPattern

	// Each distinct signal present moves the complexity score by ±2.
	BeginnerSignals []*regexp.Regexp
	AdvancedSignals []*regexp.Regexp

	// StrongKeywords are substring-matched against the lower-cased input.
	StrongKeywords map[Intent][]string

	Templates map[Intent][]Step
	// ExpertBuildStep is appended to the build template for expert requests.
	ExpertBuildStep Step
}

func words(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + expr + `)\b`)
}

func named(name, expr string) NamedPattern {
	return NamedPattern{Name: name, Pattern: words(expr)}
}

func signals(kws ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(kws))
	for i, kw := range kws {
		out[i] = words(regexp.QuoteMeta(kw))
	}
	return out
}

var defaultTables = buildDefaultTables()

// DefaultTables returns the built-in classification tables. The returned
// value shares compiled patterns with every other caller and must be treated
// as read-only.
func DefaultTables() Tables {
	return defaultTables
}

func buildDefaultTables() Tables {
	return Tables{
		Intents: []PatternGroup{
			{Intent: Build, Patterns: []*regexp.Regexp{
				words(`build|create|make|develop|generate|code|implement|app|website|project`),
				words(`want to build|need to create|help me make`),
			}},
			{Intent: Market, Patterns: []*regexp.Regexp{
				words(`market|sell|launch|monetize|pricing|customers|revenue|landing page|go-to-market`),
				words(`make money|earn|profit|business model`),
			}},
			{Intent: Review, Patterns: []*regexp.Regexp{
				words(`review|check|analyze|audit|improve|optimize|refactor|fix|debug`),
				words(`what's wrong|issues|problems|better way`),
			}},
			{Intent: Plan, Patterns: []*regexp.Regexp{
				words(`plan|roadmap|strategy|architecture|design|structure|organize`),
				words(`how should i|best approach|recommend`),
			}},
			{Intent: Learn, Patterns: []*regexp.Regexp{
				words(`teach|learn|explain|understand|how (does|do|to)|what is|tutorial|guide|course`),
				words(`beginner|new to|getting started|fundamentals|basics`),
			}},
		},
		Technologies: []NamedPattern{
			named("Next.js", `next\.?js|nextjs`),
			named("React", `react`),
			named("TypeScript", `typescript|ts`),
			named("Python", `python`),
			named("Node.js", `node\.?js|nodejs`),
			named("AI/ML", `ai|ml|machine learning|artificial intelligence|gpt|llm`),
			named("Database", `database|sql|postgres|mongodb|sqlite`),
			named("API", `api`),
			named("Mobile", `mobile|ios|android|react native`),
			named("Web", `web|website|webapp`),
		},
		ProjectTypes: []NamedPattern{
			named("SaaS", `saas|software as a service|subscription`),
			named("E-commerce", `e-commerce|ecommerce|shop|store|marketplace`),
			named("Dashboard", `dashboard|analytics|admin panel`),
			named("Mobile App", `mobile app|ios app|android app`),
			named("Web App", `web app|webapp|web application`),
			named("API Service", `api|service|backend|microservice`),
			named("Landing Page", `landing page|website|portfolio`),
			named("Tool", `tool|utility|helper|automation`),
		},
		Goals: []NamedPattern{
			named("Make Money", `make money|earn|revenue|profit|monetize`),
			named("Learn", `learn|understand|master|improve skills`),
			named("Build Portfolio", `portfolio|showcase|demonstrate`),
			named("Solve Problem", `solve|fix|address|handle`),
			named("Scale", `scale|grow|expand`),
		},
		Timeframes: []NamedPattern{
			{Name: "days", Pattern: regexp.MustCompile(`(?i)\b(\d+)\s*(day|days)\b`)},
			{Name: "weeks", Pattern: regexp.MustCompile(`(?i)\b(\d+)\s*(week|weeks)\b`)},
			{Name: "months", Pattern: regexp.MustCompile(`(?i)\b(\d+)\s*(month|months)\b`)},
			named("quick", `quick|fast|asap|urgent|immediately`),
		},
		BeginnerSignals: signals("beginner", "new", "first time", "getting started", "basics", "simple"),
		AdvancedSignals: signals("advanced", "complex", "enterprise", "scalable", "production", "optimize"),
		StrongKeywords: map[Intent][]string{
			Learn:  {"teach", "learn", "explain", "tutorial"},
			Build:  {"build", "create", "develop", "generate"},
			Market: {"sell", "launch", "monetize", "market"},
			Review: {"review", "check", "analyze", "improve"},
			Plan:   {"plan", "design", "architecture", "strategy"},
		},
		Templates: map[Intent][]Step{
			Learn: {
				{Agent: agent.Curriculum, Action: "Design personalized learning path", EstimatedTime: "1-2 min"},
				{Agent: agent.Tutor, Action: "Teach concepts with examples", EstimatedTime: "2-3 min", Dependencies: []int{0}},
			},
			Build: {
				{Agent: agent.Architect, Action: "Design system architecture", EstimatedTime: "2-3 min"},
				{Agent: agent.Coder, Action: "Generate production-ready code", EstimatedTime: "3-5 min", Dependencies: []int{0}},
				{Agent: agent.Reviewer, Action: "Review and optimize code", EstimatedTime: "1-2 min", Dependencies: []int{1}},
			},
			Market: {
				{Agent: agent.Marketer, Action: "Create go-to-market strategy", EstimatedTime: "2-3 min"},
				{Agent: agent.Coder, Action: "Generate landing page and marketing materials", EstimatedTime: "2-3 min", Dependencies: []int{0}},
			},
			Review: {
				{Agent: agent.Reviewer, Action: "Analyze and identify issues", EstimatedTime: "2-3 min"},
				{Agent: agent.Architect, Action: "Recommend improvements", EstimatedTime: "1-2 min", Dependencies: []int{0}},
			},
			Plan: {
				{Agent: agent.Architect, Action: "Design system architecture", EstimatedTime: "2-3 min"},
				{Agent: agent.Curriculum, Action: "Create implementation roadmap", EstimatedTime: "1-2 min", Dependencies: []int{0}},
			},
			General: {
				{Agent: agent.Tutor, Action: "Provide guidance and answer questions", EstimatedTime: "1-2 min"},
			},
		},
		ExpertBuildStep: Step{Agent: agent.Marketer, Action: "Create monetization strategy", EstimatedTime: "2-3 min"},
	}
}
