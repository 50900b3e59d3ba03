package internal

type indexNode struct {
	key    string
	loc    Location
	left   *indexNode
	right  *indexNode
	height int
}

// Index maps every live key to the Location of its latest Put, ordered by key.
type Index struct {
	size int
	root *indexNode
}

func NewIndex() *Index {
	return &Index{}
}

// Set inserts or replaces the entry of key and returns the replaced Location.
func (t *Index) Set(key string, loc Location) (Location, bool) {
	var old Location
	var replaced bool
	t.root = t.insert(t.root, key, loc, &old, &replaced)
	if !replaced {
		t.size++
	}
	return old, replaced
}

// Delete removes key and returns the Location it pointed at.
func (t *Index) Delete(key string) (Location, bool) {
	var old Location
	var removed bool
	t.root = t.delete(t.root, key, &old, &removed)
	if removed {
		t.size--
	}
	return old, removed
}

func (t *Index) Get(key string) (Location, bool) {
	node := t.find(key)
	if node == nil {
		return Location{}, false
	}
	return node.loc, true
}

func (t *Index) Contains(key string) bool {
	return t.find(key) != nil
}

func (t *Index) Len() int {
	return t.size
}

// Walk calls fn for every entry in ascending key order and stops at the
// first error.
func (t *Index) Walk(fn func(key string, loc Location) error) error {
	return t.inOrder(t.root, fn)
}

// Update rewrites the Location of every entry in ascending key order with
// the one returned by fn. The tree shape is untouched.
func (t *Index) Update(fn func(key string, loc Location) Location) {
	t.update(t.root, fn)
}

func (t *Index) Keys() []string {
	keys := make([]string, 0, t.size)
	t.inOrder(t.root, func(key string, _ Location) error {
		keys = append(keys, key)
		return nil
	})
	return keys
}

func (t *Index) find(key string) *indexNode {
	node := t.root
	for node != nil {
		switch {
		case key < node.key:
			node = node.left
		case key > node.key:
			node = node.right
		default:
			return node
		}
	}
	return nil
}

func height(node *indexNode) int {
	if node == nil {
		return 0
	}
	return node.height
}

func balanceFactor(node *indexNode) int {
	if node == nil {
		return 0
	}
	return height(node.left) - height(node.right)
}

func fixHeight(node *indexNode) {
	node.height = max(height(node.left), height(node.right)) + 1
}

func rightRotate(y *indexNode) *indexNode {
	x := y.left
	T2 := x.right

	// perform rotation
	x.right = y
	y.left = T2

	fixHeight(y)
	fixHeight(x)
	return x
}

func leftRotate(x *indexNode) *indexNode {
	y := x.right
	T2 := y.left

	// perform rotation
	y.left = x
	x.right = T2

	fixHeight(x)
	fixHeight(y)
	return y
}

// rebalance restores the AVL property at node after an insert or delete
// below it, deciding the case from the children's balance factors.
func rebalance(node *indexNode) *indexNode {
	fixHeight(node)
	balance := balanceFactor(node)

	if balance > 1 {
		// left right case
		if balanceFactor(node.left) < 0 {
			node.left = leftRotate(node.left)
		}
		return rightRotate(node)
	}

	if balance < -1 {
		// right left case
		if balanceFactor(node.right) > 0 {
			node.right = rightRotate(node.right)
		}
		return leftRotate(node)
	}

	return node
}

func (t *Index) insert(node *indexNode, key string, loc Location, old *Location, replaced *bool) *indexNode {
	if node == nil {
		return &indexNode{key: key, loc: loc, height: 1}
	}

	if key < node.key {
		node.left = t.insert(node.left, key, loc, old, replaced)
	} else if key > node.key {
		node.right = t.insert(node.right, key, loc, old, replaced)
	} else {
		*old, *replaced = node.loc, true
		node.loc = loc
		return node
	}

	return rebalance(node)
}

func (t *Index) delete(node *indexNode, key string, old *Location, removed *bool) *indexNode {
	if node == nil {
		return nil
	}

	if key < node.key {
		node.left = t.delete(node.left, key, old, removed)
	} else if key > node.key {
		node.right = t.delete(node.right, key, old, removed)
	} else {
		*old, *removed = node.loc, true

		if node.left == nil {
			return node.right
		}
		if node.right == nil {
			return node.left
		}

		// two children: take the in-order successor's place
		successor := node.right
		for successor.left != nil {
			successor = successor.left
		}
		var ignored Location
		var found bool
		node.right = t.delete(node.right, successor.key, &ignored, &found)
		node.key, node.loc = successor.key, successor.loc
	}

	return rebalance(node)
}

func (t *Index) inOrder(node *indexNode, fn func(string, Location) error) error {
	if node == nil {
		return nil
	}
	if err := t.inOrder(node.left, fn); err != nil {
		return err
	}
	if err := fn(node.key, node.loc); err != nil {
		return err
	}
	return t.inOrder(node.right, fn)
}

func (t *Index) update(node *indexNode, fn func(string, Location) Location) {
	if node == nil {
		return
	}
	t.update(node.left, fn)
	node.loc = fn(node.key, node.loc)
	t.update(node.right, fn)
}
