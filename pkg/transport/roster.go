// ABOUTME: Fixed-capacity roster of users present on the bridge
// ABOUTME: Join and part keep entries unique and compact with a changed flag for the display
package transport

// Roster holds up to MaxUsers unique usernames in join order
type Roster struct {
	users   [MaxUsers]string
	count   int
	changed bool
}

// Join adds name. Returns false if it is already present, invalid, or the
// roster is full.
func (r *Roster) Join(name string) bool {
	if name == "" || len(name) > MaxUsername {
		return false
	}
	if r.count >= MaxUsers || r.index(name) >= 0 {
		return false
	}
	r.users[r.count] = name
	r.count++
	r.changed = true
	return true
}

// Part removes name by exact match, compacting the remaining entries
func (r *Roster) Part(name string) bool {
	idx := r.index(name)
	if idx < 0 {
		return false
	}
	copy(r.users[idx:r.count-1], r.users[idx+1:r.count])
	r.count--
	r.users[r.count] = ""
	r.changed = true
	return true
}

func (r *Roster) index(name string) int {
	for i := 0; i < r.count; i++ {
		if r.users[i] == name {
			return i
		}
	}
	return -1
}

// Contains reports whether name is present
func (r *Roster) Contains(name string) bool {
	return r.index(name) >= 0
}

// Len returns the number of users
func (r *Roster) Len() int {
	return r.count
}

// User returns the user at index i
func (r *Roster) User(i int) (string, bool) {
	if i < 0 || i >= r.count {
		return "", false
	}
	return r.users[i], true
}

// Users returns a copy of the usernames
func (r *Roster) Users() []string {
	out := make([]string, r.count)
	copy(out, r.users[:r.count])
	return out
}

// Changed reports whether the roster changed since ClearChanged
func (r *Roster) Changed() bool {
	return r.changed
}

// ClearChanged resets the changed flag
func (r *Roster) ClearChanged() {
	r.changed = false
}

// Reset empties the roster
func (r *Roster) Reset() {
	if r.count > 0 {
		r.changed = true
	}
	for i := range r.users[:r.count] {
		r.users[i] = ""
	}
	r.count = 0
}
