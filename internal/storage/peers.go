package storage

import "time"

// KnownPeer is the persistent record of an identity this client has seen.
// It is written on join notices, inbound messages and friend merges, and is
// never cleared just because the peer goes idle.
type KnownPeer struct {
	Key         string
	DisplayName string
	IsFriend    bool
	LastSeen    time.Time
}

// UpsertPeer stores or refreshes a peer record. A blank display name never
// overwrites a stored one, and friendship is sticky once set.
func (d *DB) UpsertPeer(p KnownPeer) error {
	fr := 0
	if p.IsFriend {
		fr = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec(`
		INSERT INTO known_peers (key, display_name, is_friend, last_seen)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name = '' THEN known_peers.display_name ELSE excluded.display_name END,
			is_friend    = MAX(known_peers.is_friend, excluded.is_friend),
			last_seen    = CURRENT_TIMESTAMP`,
		p.Key, p.DisplayName, fr,
	)
	return err
}

// GetPeer returns the stored record for a key, or false if unknown.
func (d *DB) GetPeer(key string) (KnownPeer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var p KnownPeer
	var fr int
	var lastSeen string
	err := d.db.QueryRow(`
		SELECT key, display_name, is_friend, last_seen
		FROM known_peers WHERE key = ?`, key).
		Scan(&p.Key, &p.DisplayName, &fr, &lastSeen)
	if err != nil {
		return KnownPeer{}, false
	}
	p.IsFriend = fr != 0
	p.LastSeen, _ = time.Parse("2006-01-02 15:04:05", lastSeen)
	return p, true
}

// ListPeers returns all known peers, most recently seen first.
func (d *DB) ListPeers() ([]KnownPeer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rows, err := d.db.Query(`
		SELECT key, display_name, is_friend, last_seen
		FROM known_peers ORDER BY last_seen DESC, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var peers []KnownPeer
	for rows.Next() {
		var p KnownPeer
		var fr int
		var lastSeen string
		if err := rows.Scan(&p.Key, &p.DisplayName, &fr, &lastSeen); err != nil {
			return nil, err
		}
		p.IsFriend = fr != 0
		p.LastSeen, _ = time.Parse("2006-01-02 15:04:05", lastSeen)
		peers = append(peers, p)
	}
	return peers, rows.Err()
}

// DeletePeer removes a peer from the cache entirely.
func (d *DB) DeletePeer(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec(`DELETE FROM known_peers WHERE key = ?`, key)
	return err
}
