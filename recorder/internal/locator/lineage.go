package locator

// Ancestor is one level of the lineage reported by the page capture script,
// target first. Preceding lists the earlier siblings in document order;
// the script only reports elements and doctypes since text and comment
// nodes can never share an element's name.
type Ancestor struct {
	NodeType  int       `json:"nodeType"`
	NodeName  string    `json:"nodeName"`
	Preceding []Sibling `json:"preceding,omitempty"`
}

// Sibling is a preceding sibling of an Ancestor.
type Sibling struct {
	NodeType int    `json:"nodeType"`
	NodeName string `json:"nodeName"`
}

type lineageNode struct {
	nodeType int
	nodeName string
	parent   *lineageNode
	prev     *lineageNode
}

// FromLineage rebuilds the target node of a reported lineage. An empty
// lineage yields a nil Node.
func FromLineage(lineage []Ancestor) Node {
	if len(lineage) == 0 {
		return nil
	}

	var parent *lineageNode
	var node *lineageNode
	for i := len(lineage) - 1; i >= 0; i-- {
		a := lineage[i]
		node = &lineageNode{nodeType: a.NodeType, nodeName: a.NodeName, parent: parent}

		var prev *lineageNode
		for _, s := range a.Preceding {
			prev = &lineageNode{nodeType: s.NodeType, nodeName: s.NodeName, parent: parent, prev: prev}
		}
		node.prev = prev
		parent = node
	}
	return node
}

func (l *lineageNode) NodeType() int    { return l.nodeType }
func (l *lineageNode) NodeName() string { return l.nodeName }

func (l *lineageNode) Parent() Node {
	if l.parent == nil {
		return nil
	}
	return l.parent
}

func (l *lineageNode) PrevSibling() Node {
	if l.prev == nil {
		return nil
	}
	return l.prev
}
