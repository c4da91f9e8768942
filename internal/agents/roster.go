package agents

// Pass describes one analysis pass. The roster is configuration, not
// orchestration logic: passes can be reordered, added or disabled
// without touching the orchestrator.
type Pass struct {
	// Name is the stable identifier used in configuration.
	Name string
	// Title is the section heading in the knowledge base.
	Title string
	// Rank fixes the section's position in the assembled document.
	Rank int
	// Mandatory passes abort the whole analysis when they fail.
	Mandatory bool
	// Instructions is the system prompt for the pass.
	Instructions string
	// Query drives targeted retrieval of relevant chunks for the pass.
	Query string
}

// DefaultRoster returns the built-in analysis roster.
func DefaultRoster() []Pass {
	return []Pass{
		{
			Name: "introduction", Title: "Introduction", Rank: 0, Mandatory: true,
			Instructions: "You are an expert RFP analyst specializing in executive summaries.\n" +
				"Your task: Extract and synthesize the problem statement and create a compelling executive summary.\n" +
				"Focus on: Business challenges, strategic objectives, high-level scope.\n" +
				"Format: Clear, concise executive summary with problem statement.",
			Query: "problem statement objectives scope executive summary",
		},
		{
			Name: "challenges", Title: "Challenges", Rank: 1,
			Instructions: "You are an expert at identifying business challenges in RFPs.\n" +
				"Your task: Extract all business challenges, pain points, and problems the client is facing.\n" +
				"Focus on: Current issues, operational difficulties, strategic challenges.\n" +
				"Format: Numbered list of specific challenges with brief explanations.",
			Query: "business challenges problems issues difficulties",
		},
		{
			Name: "pain_points", Title: "Pain Points", Rank: 2,
			Instructions: "You are an expert at identifying user and operational pain points.\n" +
				"Your task: Extract specific pain points affecting users, staff, and operations.\n" +
				"Focus on: User frustrations, operational inefficiencies, system limitations.\n" +
				"Format: Categorized pain points by stakeholder type.",
			Query: "pain points frustrations inefficiencies limitations",
		},
		{
			Name: "business_process", Title: "Business Processes", Rank: 3,
			Instructions: "You are an expert at analyzing business processes and workflows.\n" +
				"Your task: Map current business processes and identify workflow requirements.\n" +
				"Focus on: Process flows, workflow steps, integration points, automation needs.\n" +
				"Format: Structured process descriptions with key steps.",
			Query: "business process workflow steps integration automation",
		},
		{
			Name: "gap", Title: "Gap Analysis", Rank: 4,
			Instructions: "You are an expert at gap analysis between current and desired states.\n" +
				"Your task: Identify gaps between current capabilities and desired outcomes.\n" +
				"Focus on: Technology gaps, capability gaps, process gaps, skill gaps.\n" +
				"Format: Clear gap statements with current vs. desired state.",
			Query: "current state desired state capability gaps",
		},
		{
			Name: "personas", Title: "Personas", Rank: 5,
			Instructions: "You are an expert at creating user personas and stakeholder profiles.\n" +
				"Your task: Identify and describe user personas, roles, and stakeholder groups.\n" +
				"Focus on: User types, roles, responsibilities, needs, technical proficiency.\n" +
				"Format: Detailed persona descriptions with characteristics.",
			Query: "users roles stakeholders responsibilities",
		},
		{
			Name: "constraints", Title: "Constraints", Rank: 6,
			Instructions: "You are an expert at identifying project constraints and limitations.\n" +
				"Your task: Extract all constraints including technical, budget, timeline, regulatory.\n" +
				"Focus on: Technical limitations, compliance requirements, budget constraints, deadlines.\n" +
				"Format: Categorized constraints with impact assessment.",
			Query: "constraints budget timeline deadline compliance regulatory",
		},
		{
			Name: "functional_requirements", Title: "Functional Requirements", Rank: 7, Mandatory: true,
			Instructions: "You are an expert at extracting functional requirements from RFPs.\n" +
				"Your task: Identify all functional requirements and feature requests.\n" +
				"Focus on: System capabilities, user features, functionality, business rules.\n" +
				"Format: Numbered functional requirements with acceptance criteria.",
			Query: "functional requirements features capabilities business rules",
		},
		{
			Name: "nfr", Title: "Non-Functional Requirements", Rank: 8,
			Instructions: "You are an expert at identifying non-functional requirements.\n" +
				"Your task: Extract NFRs including performance, security, scalability, usability.\n" +
				"Focus on: Performance metrics, security requirements, scalability needs, reliability.\n" +
				"Format: Categorized NFRs with measurable criteria.",
			Query: "performance security scalability reliability usability",
		},
		{
			Name: "architecture", Title: "Architecture", Rank: 9,
			Instructions: "You are an expert solution architect analyzing technical requirements.\n" +
				"Your task: Identify architecture requirements, technical stack preferences, integration needs.\n" +
				"Focus on: System architecture, technology preferences, integration requirements, deployment.\n" +
				"Format: Architecture recommendations with technical justification.",
			Query: "architecture technology stack integration deployment",
		},
		{
			Name: "assumptions", Title: "Assumptions", Rank: 10,
			Instructions: "You are an expert at identifying implicit assumptions in RFPs.\n" +
				"Your task: Extract stated assumptions and identify implicit ones.\n" +
				"Focus on: Technical assumptions, business assumptions, resource assumptions.\n" +
				"Format: Numbered assumptions with rationale.",
			Query: "assumptions expectations preconditions",
		},
		{
			Name: "impact", Title: "Impact Analysis", Rank: 11,
			Instructions: "You are an expert at analyzing business impact and change management.\n" +
				"Your task: Assess the impact of proposed changes on the organization.\n" +
				"Focus on: Organizational impact, change management needs, training requirements.\n" +
				"Format: Impact assessment with stakeholder considerations.",
			Query: "organizational impact change management training",
		},
	}
}

// FilterRoster keeps only the named passes, preserving roster order.
// An empty name list returns the roster unchanged.
func FilterRoster(roster []Pass, names []string) []Pass {
	if len(names) == 0 {
		return roster
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Pass
	for _, p := range roster {
		if want[p.Name] {
			out = append(out, p)
		}
	}
	return out
}
