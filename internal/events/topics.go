package events

// Topic constants for proposal activity events.
const (
	TopicProposalCreated  = "proposal.created"
	TopicProposalUpdated  = "proposal.updated"
	TopicProposalOpened   = "proposal.opened"
	TopicProposalExported = "proposal.exported"
)

// DefaultTopics returns every topic the service emits.
func DefaultTopics() []string {
	return []string{
		TopicProposalCreated,
		TopicProposalUpdated,
		TopicProposalOpened,
		TopicProposalExported,
	}
}
