package pool

func init() {
	Register("soil", func() Pool { return mustPlanPool("soil", subsurfacePlan()) })
}
