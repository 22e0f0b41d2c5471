/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// registerHandlers wires every command group's handlers into d. Server.NewServer
// calls this once at construction time.
func registerHandlers(d *Dispatcher) {
	registerRegistrationHandlers(d)
	registerChannelHandlers(d)
	registerMessagingHandlers(d)
	registerQueryHandlers(d)
	registerOperHandlers(d)
}
