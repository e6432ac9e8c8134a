// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session manages the signed-in provider identity.
//
// The Manager wraps a provider.Authenticator. The user it learns about is
// sealed with NaCl secretbox and stored under the puterUser key, so the
// identity survives restarts without being readable from the database.
//
// # Key Types
//
//   - Manager: sign in, sign out, cached and de-duplicated user lookup
//   - Status: session ID, start time and current user
//   - UserMsg: Bubble Tea message carrying an identity lookup result
//
// # Usage
//
//	key, err := session.LoadOrCreateKey(filepath.Join(dir, "session.key"))
//	if err != nil {
//		return err
//	}
//	mgr := session.NewManager(p.Auth(), session.Config{Store: kv, Key: key, Notifier: ctrl})
//	if u, ok := mgr.Restore(ctx); ok {
//		fmt.Println("signed in as", u.Username)
//	}
package session
