package session

import (
	"errors"
	"log"

	"github.com/Richie010/vshareu/internal/api"
	"github.com/Richie010/vshareu/internal/social"
)

// ErrNoAccount is returned by social operations when the session runs
// without an account service (p2p mode, or anonymous).
var ErrNoAccount = errors.New("session: no account service configured")

// RefreshSocial refetches friends and pending requests and merges them in.
// Safe to call from anywhere; each completion is an idempotent merge, so a
// stale completion landing late cannot corrupt the view.
func (s *Session) RefreshSocial() {
	if s.api == nil || s.selfID == 0 {
		return
	}

	users, err := s.api.Friends(s.selfID)
	if err != nil {
		log.Printf("SESSION: friends fetch failed: %v", err)
	} else {
		added := s.social.MergeFriends(friendsFromUsers(users))
		for _, key := range added {
			s.conversations.EnsureThread(key)
			s.cachePeer(key, true)
		}
		if len(added) > 0 {
			s.logf("merged %d new friends", len(added))
		}
	}

	reqs, err := s.api.FriendRequests(s.selfID)
	if err != nil {
		log.Printf("SESSION: requests fetch failed: %v", err)
	} else {
		s.social.ReplaceRequests(requestsFromAPI(reqs))
	}

	s.emit(Event{Type: EventSocial})
}

// AcceptRequest confirms a pending friend request. The reference may be a
// Request, a numeric id, or a raw upstream record; anything the resolver
// understands. After the upstream accept, both social lists are refetched —
// the authoritative state lives upstream and the local view must match it.
func (s *Session) AcceptRequest(ref any) error {
	if s.api == nil {
		return ErrNoAccount
	}
	id, err := social.ResolveAcceptRef(ref)
	if err != nil {
		return err
	}
	if err := s.api.AcceptFriendRequest(id); err != nil {
		return err
	}
	s.logf("accepted friend request %d", id)
	s.RefreshSocial()
	return nil
}

// RequestFriend sends a friend request to the given account.
func (s *Session) RequestFriend(receiverID int64) error {
	if s.api == nil || s.selfID == 0 {
		return ErrNoAccount
	}
	if err := s.api.CreateFriendRequest(s.selfID, receiverID); err != nil {
		return err
	}
	s.logf("sent friend request to account %d", receiverID)
	return nil
}

// Search queries accounts by name or mobile fragment, excluding self.
func (s *Session) Search(query string) ([]api.User, error) {
	if s.api == nil {
		return nil, ErrNoAccount
	}
	return s.api.SearchUsers(query, s.selfID)
}

func friendsFromUsers(users []api.User) []social.Friend {
	out := make([]social.Friend, 0, len(users))
	for _, u := range users {
		out = append(out, social.Friend{ID: u.ID, Key: u.Key(), DisplayName: u.Name})
	}
	return out
}

func requestsFromAPI(reqs []api.FriendRequest) []social.Request {
	out := make([]social.Request, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, social.Request{ID: r.ID, RequesterKey: r.Key(), RequesterName: r.FromName})
	}
	return out
}
