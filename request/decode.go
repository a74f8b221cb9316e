package request

// Decode parses b as one request document.
//
// Every request needs "password", "user" and "method". The remaining
// fields depend on (user, method) and, for lookups and settings, on
// "how" or "what". The string enums user, method, how and what are all
// matched case-insensitively.
func Decode(b []byte) (Request, error) {
	doc, err := parseDocument(b)
	if err != nil {
		return nil, err
	}
	secret, err := doc.stringField("password")
	if err != nil {
		return nil, err
	}
	user, err := doc.enumField("user", "admin", "client")
	if err != nil {
		return nil, err
	}
	method, err := doc.enumField("method", "get", "drop", "set", "sign_up")
	if err != nil {
		return nil, err
	}

	switch {
	case user == "admin" && method == "get":
		return decodeAdminGet(doc, Admin{Key: secret})
	case user == "admin" && method == "drop":
		ip, err := doc.ipv4Field("ip")
		if err != nil {
			return nil, err
		}
		return AdminDrop{Admin: Admin{Key: secret}, IP: ip}, nil
	case user == "admin" && method == "set":
		return decodeAdminSet(doc, Admin{Key: secret})
	case user == "client" && method == "get":
		return decodeClientGet(doc, Client{Password: secret})
	case user == "client" && method == "drop":
		ip, err := doc.ipv4Field("ip")
		if err != nil {
			return nil, err
		}
		return ClientDrop{Client: Client{Password: secret}, IP: ip}, nil
	case user == "client" && method == "sign_up":
		return decodeSignUp(doc, Client{Password: secret})
	}
	return nil, fieldErr("method", "%q is not available to %s", method, user)
}

func decodeAdminGet(doc document, a Admin) (Request, error) {
	how, err := doc.enumField("how", "mac", "username", "index")
	if err != nil {
		return nil, err
	}
	switch how {
	case "mac":
		mac, err := doc.macField("mac")
		if err != nil {
			return nil, err
		}
		return AdminGetByMAC{Admin: a, MAC: mac}, nil
	case "username":
		username, start, err := usernameQuery(doc)
		if err != nil {
			return nil, err
		}
		return AdminGetByUsername{Admin: a, Username: username, StartIndex: start}, nil
	default:
		start, err := doc.indexField("start_index")
		if err != nil {
			return nil, err
		}
		end, err := doc.indexField("end_index")
		if err != nil {
			return nil, err
		}
		return AdminGetByIndex{Admin: a, StartIndex: start, EndIndex: end}, nil
	}
}

func decodeAdminSet(doc document, a Admin) (Request, error) {
	what, err := doc.enumField("what", "capacity", "list_size", "drop_votes", "drop_verification", "key", "password")
	if err != nil {
		return nil, err
	}
	switch what {
	case "capacity":
		n, err := doc.uintField("capacity", 16)
		if err != nil {
			return nil, err
		}
		return AdminSetCapacity{Admin: a, Capacity: uint16(n)}, nil
	case "list_size":
		n, err := doc.uintField("list_size", 16)
		if err != nil {
			return nil, err
		}
		return AdminSetListSize{Admin: a, ListSize: uint16(n)}, nil
	case "drop_votes":
		n, err := doc.uintField("drop_votes", 8)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fieldErr("drop_votes", "must be between 1 and 255")
		}
		return AdminSetDropVotes{Admin: a, DropVotes: uint8(n)}, nil
	case "drop_verification":
		v, err := doc.boolField("drop_verification")
		if err != nil {
			return nil, err
		}
		return AdminSetDropVerification{Admin: a, DropVerification: v}, nil
	case "key":
		k, err := doc.stringField("key")
		if err != nil {
			return nil, err
		}
		return AdminSetKey{Admin: a, NewKey: k}, nil
	default:
		p, err := doc.stringField("new_password")
		if err != nil {
			return nil, err
		}
		return AdminSetPassword{Admin: a, NewPassword: p}, nil
	}
}

func decodeClientGet(doc document, c Client) (Request, error) {
	how, err := doc.enumField("how", "mac", "username")
	if err != nil {
		return nil, err
	}
	if how == "mac" {
		mac, err := doc.macField("mac")
		if err != nil {
			return nil, err
		}
		return ClientGetByMAC{Client: c, MAC: mac}, nil
	}
	username, start, err := usernameQuery(doc)
	if err != nil {
		return nil, err
	}
	return ClientGetByUsername{Client: c, Username: username, StartIndex: start}, nil
}

func decodeSignUp(doc document, c Client) (Request, error) {
	username, err := doc.stringField("username")
	if err != nil {
		return nil, err
	}
	mac, err := doc.macField("mac")
	if err != nil {
		return nil, err
	}
	port, err := doc.uintField("port", 16)
	if err != nil {
		return nil, err
	}
	hidden, err := doc.boolField("get_only_by_mac")
	if err != nil {
		return nil, err
	}
	return ClientSignUp{
		Client:       c,
		Username:     username,
		MAC:          mac,
		Port:         uint16(port),
		GetOnlyByMAC: hidden,
	}, nil
}

func usernameQuery(doc document) (string, int, error) {
	username, err := doc.stringField("username")
	if err != nil {
		return "", 0, err
	}
	start, err := doc.indexField("start_index")
	if err != nil {
		return "", 0, err
	}
	return username, start, nil
}
