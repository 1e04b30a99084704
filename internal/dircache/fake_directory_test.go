package dircache

import (
	"context"
	"sync"

	"github.com/netresearch/dircache/internal/directory"
)

// fakeDirectory is an in-memory implementation of the three directory
// gateway interfaces, grounded in the teacher's mockLDAPClient pattern
// (call counters, seed helpers, an out-of-band deletion helper) but
// adapted to the users/groups/memberships shape this module actually
// caches. It has no error injection: the sentinel errors it returns come
// from its own state.
type fakeDirectory struct {
	mu sync.Mutex

	nextUserID  int64
	nextGroupID int64

	usersByID    map[int64]string
	usersByName  map[string]int64
	groupsByID   map[int64]string
	groupsByName map[string]int64
	memberships  map[int64]map[int64]struct{} // userID -> set of groupID

	calls struct {
		getUserByName       int
		getUserByID         int
		addUser             int
		removeUser          int
		getGroupByName      int
		getGroupByID        int
		addGroup            int
		removeGroup         int
		addUserToGroups     int
		removeUserFromGroup int
		getGroupsForUser    int
	}
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		usersByID:    make(map[int64]string),
		usersByName:  make(map[string]int64),
		groupsByID:   make(map[int64]string),
		groupsByName: make(map[string]int64),
		memberships:  make(map[int64]map[int64]struct{}),
	}
}

func (f *fakeDirectory) seedUser(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.usersByID[id] = name
	f.usersByName[name] = id
	if id >= f.nextUserID {
		f.nextUserID = id + 1
	}
}

func (f *fakeDirectory) seedGroup(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.groupsByID[id] = name
	f.groupsByName[name] = id
	if id >= f.nextGroupID {
		f.nextGroupID = id + 1
	}
}

func (f *fakeDirectory) seedMembership(userID, groupID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.memberships[userID] == nil {
		f.memberships[userID] = make(map[int64]struct{})
	}
	f.memberships[userID][groupID] = struct{}{}
}

// deleteUserRecord removes a user from the backing store without going
// through RemoveUser, simulating an out-of-band deletion for foreign-key
// violation scenarios (spec.md §8 S4).
func (f *fakeDirectory) deleteUserRecord(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := f.usersByID[id]
	delete(f.usersByID, id)
	delete(f.usersByName, name)
}

func (f *fakeDirectory) GetUserByName(_ context.Context, name string) (*directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.getUserByName++

	id, ok := f.usersByName[name]
	if !ok {
		return nil, directory.ErrNotFound
	}

	return &directory.User{ID: id, Name: name}, nil
}

func (f *fakeDirectory) GetUserByID(_ context.Context, id int64) (*directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.getUserByID++

	name, ok := f.usersByID[id]
	if !ok {
		return nil, directory.ErrNotFound
	}

	return &directory.User{ID: id, Name: name}, nil
}

func (f *fakeDirectory) AddUser(_ context.Context, name string) (*directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.addUser++

	if _, exists := f.usersByName[name]; exists {
		return nil, directory.ErrUniqueViolation
	}

	f.nextUserID++
	id := f.nextUserID
	f.usersByID[id] = name
	f.usersByName[name] = id

	return &directory.User{ID: id, Name: name}, nil
}

func (f *fakeDirectory) RemoveUser(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.removeUser++

	name := f.usersByID[id]
	delete(f.usersByID, id)
	delete(f.usersByName, name)
	delete(f.memberships, id)

	return nil
}

func (f *fakeDirectory) GetGroupByName(_ context.Context, name string) (*directory.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.getGroupByName++

	id, ok := f.groupsByName[name]
	if !ok {
		return nil, directory.ErrNotFound
	}

	return &directory.Group{ID: id, Name: name}, nil
}

func (f *fakeDirectory) GetGroupByID(_ context.Context, id int64) (*directory.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.getGroupByID++

	name, ok := f.groupsByID[id]
	if !ok {
		return nil, directory.ErrNotFound
	}

	return &directory.Group{ID: id, Name: name}, nil
}

func (f *fakeDirectory) AddGroup(_ context.Context, name string) (*directory.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.addGroup++

	if _, exists := f.groupsByName[name]; exists {
		return nil, directory.ErrUniqueViolation
	}

	f.nextGroupID++
	id := f.nextGroupID
	f.groupsByID[id] = name
	f.groupsByName[name] = id

	return &directory.Group{ID: id, Name: name}, nil
}

func (f *fakeDirectory) RemoveGroup(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.removeGroup++

	name := f.groupsByID[id]
	delete(f.groupsByID, id)
	delete(f.groupsByName, name)

	for _, groups := range f.memberships {
		delete(groups, id)
	}

	return nil
}

func (f *fakeDirectory) AddUserToGroups(_ context.Context, userID int64, groupIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.addUserToGroups++

	if _, ok := f.usersByID[userID]; !ok {
		return directory.ErrForeignKeyViolation
	}

	if f.memberships[userID] == nil {
		f.memberships[userID] = make(map[int64]struct{})
	}

	duplicate := false
	for _, gid := range groupIDs {
		if _, ok := f.groupsByID[gid]; !ok {
			return directory.ErrForeignKeyViolation
		}

		if _, exists := f.memberships[userID][gid]; exists {
			duplicate = true
			continue
		}

		f.memberships[userID][gid] = struct{}{}
	}

	if duplicate {
		return directory.ErrUniqueViolation
	}

	return nil
}

func (f *fakeDirectory) RemoveUserFromGroup(_ context.Context, userID, groupID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.removeUserFromGroup++

	if groups, ok := f.memberships[userID]; ok {
		delete(groups, groupID)
	}

	return nil
}

func (f *fakeDirectory) GetGroupsForUser(_ context.Context, userID int64) ([]directory.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.getGroupsForUser++

	if _, ok := f.usersByID[userID]; !ok {
		return nil, directory.ErrNotFound
	}

	groups := make([]directory.Group, 0, len(f.memberships[userID]))
	for gid := range f.memberships[userID] {
		groups = append(groups, directory.Group{ID: gid, Name: f.groupsByID[gid]})
	}

	return groups, nil
}

// newTestManager builds a Manager over a fresh fakeDirectory with a small
// TTL-irrelevant config suitable for deterministic unit tests.
func newTestManager(f *fakeDirectory) *Manager {
	return New(Config{
		UserAccess:       f,
		GroupAccess:      f,
		MembershipAccess: f,
		LRUMax:           1000,
		EvictionTTL:      0, // defaulted
	})
}
