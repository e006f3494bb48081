package catalog

// Demo returns a small seeded catalog with one zone, "demo", used by
// `catindex serve --demo`.
func Demo() *Memory {
	m := NewMemory()
	m.AddZone("demo", "rods")

	colls := []struct{ path, owner string }{
		{"/demo/home", "rods"},
		{"/demo/home/alice", "alice"},
		{"/demo/home/alice/reports", "alice"},
		{"/demo/home/bob", "bob"},
		{"/demo/projects", "rods"},
		{"/demo/projects/p1", "rods"},
	}
	for _, c := range colls {
		mustDemo(m.AddCollection(c.path, c.owner))
	}

	objects := []struct {
		path  string
		owner string
		size  int64
		avus  []AVU
	}{
		{"/demo/home/alice/reports/q1.pdf", "alice", 52_400, []AVU{
			{Name: "title", Value: "Quarterly Report Q1"},
			{Name: "mg.author", Value: "Alice Liddell"},
			{Name: "project", Value: "P1"},
		}},
		{"/demo/home/alice/reports/q2.pdf", "alice", 61_020, []AVU{
			{Name: "title", Value: "Quarterly Report Q2"},
			{Name: "project", Value: "P1"},
		}},
		{"/demo/home/alice/notes.txt", "alice", 812, []AVU{
			{Name: "description", Value: "meeting notes"},
		}},
		{"/demo/home/bob/scan.tif", "bob", 8_388_608, []AVU{
			{Name: "mgs.microscope.model", Value: "LSM 980"},
			{Name: "exposure", Value: "250", Unit: "ms"},
		}},
		{"/demo/projects/p1/summary.md", "rods", 2_048, []AVU{
			{Name: "summary", Value: "Project one overview"},
		}},
	}
	for _, o := range objects {
		mustDemo(m.AddDataObject(o.path, o.owner, o.size))
		if err := m.AddMetadata(o.path, o.avus...); err != nil {
			panic(err)
		}
	}

	acl := func(id string, name string, kind PrincipalKind, access Access) ACL {
		return ACL{PrincipalID: id, PrincipalName: name, Kind: kind, Access: access}
	}
	grants := map[string][]ACL{
		"/demo/home/alice":                {acl("101", "alice", PrincipalIndividual, AccessOwn)},
		"/demo/home/alice/reports":        {acl("101", "alice", PrincipalIndividual, AccessOwn), acl("900", "analysts", PrincipalGroup, AccessRead)},
		"/demo/home/alice/reports/q1.pdf": {acl("101", "alice", PrincipalIndividual, AccessOwn), acl("900", "analysts", PrincipalGroup, AccessRead)},
		"/demo/home/alice/reports/q2.pdf": {acl("101", "alice", PrincipalIndividual, AccessOwn)},
		"/demo/home/alice/notes.txt":      {acl("101", "alice", PrincipalIndividual, AccessOwn)},
		"/demo/home/bob":                  {acl("102", "bob", PrincipalIndividual, AccessOwn)},
		"/demo/home/bob/scan.tif":         {acl("102", "bob", PrincipalIndividual, AccessOwn), acl("101", "alice", PrincipalIndividual, AccessRead)},
		"/demo/projects/p1/summary.md":    {acl("900", "analysts", PrincipalGroup, AccessRead)},
	}
	for path, acls := range grants {
		if err := m.SetACLs(path, acls...); err != nil {
			panic(err)
		}
	}
	return m
}

func mustDemo(_ Item, err error) {
	if err != nil {
		panic(err)
	}
}
