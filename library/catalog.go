package library

import (
	"fmt"
	"strings"
)

const nilNode = -1

type catalogNode struct {
	book        Book
	left, right int
}

// Catalog is an unbalanced binary search tree of books keyed by id. Nodes
// live in an arena and refer to each other by index; freed slots are reused.
type Catalog struct {
	nodes []catalogNode
	free  []int
	root  int
	size  int
	max   int // 0 means unbounded
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{root: nilNode}
}

// Len returns the number of books.
func (c *Catalog) Len() int { return c.size }

func (c *Catalog) alloc(b Book) (int, error) {
	if c.max > 0 && c.size >= c.max {
		return nilNode, ErrAllocation
	}
	n := catalogNode{book: b, left: nilNode, right: nilNode}
	if k := len(c.free); k > 0 {
		i := c.free[k-1]
		c.free = c.free[:k-1]
		c.nodes[i] = n
		return i, nil
	}
	c.nodes = append(c.nodes, n)
	return len(c.nodes) - 1, nil
}

func (c *Catalog) release(i int) {
	c.nodes[i] = catalogNode{left: nilNode, right: nilNode}
	c.free = append(c.free, i)
}

func (c *Catalog) find(id int64) int {
	i := c.root
	for i != nilNode {
		n := &c.nodes[i]
		switch {
		case id < n.book.ID:
			i = n.left
		case id > n.book.ID:
			i = n.right
		default:
			return i
		}
	}
	return nilNode
}

// Insert adds b, keeping the tree ordered by id.
func (c *Catalog) Insert(b Book) error {
	if c.find(b.ID) != nilNode {
		return fmt.Errorf("book %d: %w", b.ID, ErrDuplicateID)
	}
	i, err := c.alloc(b)
	if err != nil {
		return fmt.Errorf("insert book %d: %w", b.ID, err)
	}
	c.size++
	if c.root == nilNode {
		c.root = i
		return nil
	}
	p := c.root
	for {
		n := &c.nodes[p]
		if b.ID < n.book.ID {
			if n.left == nilNode {
				n.left = i
				return nil
			}
			p = n.left
		} else {
			if n.right == nilNode {
				n.right = i
				return nil
			}
			p = n.right
		}
	}
}

// Get returns a copy of the book with the given id.
func (c *Catalog) Get(id int64) (Book, error) {
	i := c.find(id)
	if i == nilNode {
		return Book{}, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return c.nodes[i].book, nil
}

// ref returns the stored book for in-place updates, or nil. The pointer is
// valid until the next Insert or Delete.
func (c *Catalog) ref(id int64) *Book {
	if i := c.find(id); i != nilNode {
		return &c.nodes[i].book
	}
	return nil
}

// Update replaces the stored fields of the book with b.ID.
func (c *Catalog) Update(b Book) error {
	i := c.find(b.ID)
	if i == nilNode {
		return fmt.Errorf("book %d: %w", b.ID, ErrNotFound)
	}
	c.nodes[i].book = b
	return nil
}

// FindByTitle returns the first book, in pre-order, whose title contains
// text. Matching is case-sensitive.
func (c *Catalog) FindByTitle(text string) (Book, error) {
	if i := c.preorderFind(c.root, text); i != nilNode {
		return c.nodes[i].book, nil
	}
	return Book{}, fmt.Errorf("no book matching %q: %w", text, ErrNotFound)
}

func (c *Catalog) preorderFind(i int, text string) int {
	if i == nilNode {
		return nilNode
	}
	if strings.Contains(c.nodes[i].book.Title, text) {
		return i
	}
	if j := c.preorderFind(c.nodes[i].left, text); j != nilNode {
		return j
	}
	return c.preorderFind(c.nodes[i].right, text)
}

// Delete removes an available book. Borrowed or reserved books are refused
// with ErrInvalidState.
func (c *Catalog) Delete(id int64) error {
	i := c.find(id)
	if i == nilNode {
		return fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	if st := c.nodes[i].book.Status; st != StatusAvailable {
		return fmt.Errorf("book %d is %s: %w", id, st, ErrInvalidState)
	}
	c.root = c.deleteAt(c.root, id)
	c.size--
	return nil
}

// deleteAt removes id from the subtree rooted at i and returns the new
// subtree root. A node with two children takes its in-order successor's
// fields and the successor is removed from the right subtree instead.
func (c *Catalog) deleteAt(i int, id int64) int {
	if i == nilNode {
		return nilNode
	}
	n := &c.nodes[i]
	switch {
	case id < n.book.ID:
		n.left = c.deleteAt(n.left, id)
		return i
	case id > n.book.ID:
		n.right = c.deleteAt(n.right, id)
		return i
	}
	if n.left == nilNode {
		r := n.right
		c.release(i)
		return r
	}
	if n.right == nilNode {
		l := n.left
		c.release(i)
		return l
	}
	n.book = c.nodes[c.minNode(n.right)].book
	n.right = c.deleteAt(n.right, n.book.ID)
	return i
}

func (c *Catalog) minNode(i int) int {
	for c.nodes[i].left != nilNode {
		i = c.nodes[i].left
	}
	return i
}

// ForEach calls fn for every book in ascending id order until fn returns false.
func (c *Catalog) ForEach(fn func(Book) bool) {
	c.inorder(c.root, fn)
}

func (c *Catalog) inorder(i int, fn func(Book) bool) bool {
	if i == nilNode {
		return true
	}
	if !c.inorder(c.nodes[i].left, fn) {
		return false
	}
	if !fn(c.nodes[i].book) {
		return false
	}
	return c.inorder(c.nodes[i].right, fn)
}

// All returns every book in ascending id order.
func (c *Catalog) All() []Book {
	books := make([]Book, 0, c.size)
	c.ForEach(func(b Book) bool {
		books = append(books, b)
		return true
	})
	return books
}

// PreOrder returns every book in pre-order. Inserting them in this order
// into an empty catalog rebuilds the same tree shape.
func (c *Catalog) PreOrder() []Book {
	books := make([]Book, 0, c.size)
	var walk func(int)
	walk = func(i int) {
		if i == nilNode {
			return
		}
		books = append(books, c.nodes[i].book)
		walk(c.nodes[i].left)
		walk(c.nodes[i].right)
	}
	walk(c.root)
	return books
}

// Height returns the number of levels in the tree.
func (c *Catalog) Height() int {
	var h func(int) int
	h = func(i int) int {
		if i == nilNode {
			return 0
		}
		return 1 + max(h(c.nodes[i].left), h(c.nodes[i].right))
	}
	return h(c.root)
}
