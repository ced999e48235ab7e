package models

// NotificationType distinguishes the three kinds of notification this
// engine ever writes.
type NotificationType string

const (
	TypeExposure       NotificationType = "EXPOSURE"
	TypeUpdate         NotificationType = "UPDATE"
	TypeReportDeleted  NotificationType = "REPORT_DELETED"
)

// TestStatus is the state of a single chain node, shown to the
// recipient as part of the chain visualization.
type TestStatus string

const (
	NodePositive TestStatus = "POSITIVE"
	NodeNegative TestStatus = "NEGATIVE"
	NodeUnknown  TestStatus = "UNKNOWN"
)

// ChainNode is a single hop in a chain visualization.
type ChainNode struct {
	Username          string     `json:"username,omitempty"`
	TestStatus        TestStatus `json:"testStatus"`
	Date              int64      `json:"date,omitempty"`
	IsCurrentUser     bool       `json:"isCurrentUser"`
	TestedPositiveFor []string   `json:"testedPositiveFor,omitempty"`
}

// ChainVisualization is the UI-facing rendering of one or more paths
// from the original reporter to a recipient. Nodes describe the
// representative (primary) path; Paths, when present, holds every
// group-deduplicated path of minimum length reaching this recipient.
type ChainVisualization struct {
	Nodes []ChainNode   `json:"nodes"`
	Paths [][]ChainNode `json:"paths,omitempty"`
}

// Notification is the document written for a single (recipientId,
// reportId) pair. Exactly one notification exists per pair — see the
// idempotency invariant in spec.md §4.8.
type Notification struct {
	ID            string              `json:"id" firestore:"id"`
	RecipientID   string              `json:"recipientId" firestore:"recipientId"`
	Type          NotificationType    `json:"type" firestore:"type"`
	STIType       []string            `json:"stiType,omitempty" firestore:"stiType,omitempty"`
	ExposureDate  int64               `json:"exposureDate,omitempty" firestore:"exposureDate,omitempty"`
	ChainData     ChainVisualization  `json:"chainData" firestore:"chainData"`
	ChainPath     []string            `json:"chainPath" firestore:"chainPath"`
	ChainPaths    [][]string          `json:"chainPaths,omitempty" firestore:"chainPaths,omitempty"`
	HopDepth      int                 `json:"hopDepth" firestore:"hopDepth"`
	IsRead        bool                `json:"isRead" firestore:"isRead"`
	ReceivedAt    int64               `json:"receivedAt" firestore:"receivedAt"`
	UpdatedAt     int64               `json:"updatedAt" firestore:"updatedAt"`
	ReportID      string              `json:"reportId" firestore:"reportId"`
	DeletedAt     int64               `json:"deletedAt,omitempty" firestore:"deletedAt,omitempty"`
}

// CurrentUserNodeIndex returns the index of the node flagged
// IsCurrentUser, or -1 if the chain data is malformed.
func (n *Notification) CurrentUserNodeIndex() int {
	for i, node := range n.ChainData.Nodes {
		if node.IsCurrentUser {
			return i
		}
	}
	return -1
}

// MaxHopDepth is the bound D from spec.md §4.8.
const MaxHopDepth = 10
